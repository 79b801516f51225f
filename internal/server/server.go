// Package server implements the HTTP server that exposes docchat via a
// REST/SSE API: questions are submitted with POST /api/chat and answered
// over GET /api/stream, and the raw document directory and vector index are
// managed through the upload, file and index endpoints.
// The server is started by the `docchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docchat-go/internal/conversation"
	"github.com/54b3r/docchat-go/internal/docstore"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/stream"
)

// maxQuestionBytes caps the POST /api/chat body.
const maxQuestionBytes = 64 << 10

// generationFailedMsg is the error frame text sent when generation fails.
const generationFailedMsg = "generation failed"

// New constructs a Server from the chat service, indexer, document store and
// config.
func New(svc ChatService, indexer Indexer, docs *docstore.Store, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server: chat service must not be nil")
	}
	if indexer == nil {
		return nil, fmt.Errorf("server: indexer must not be nil")
	}
	if docs == nil {
		return nil, fmt.Errorf("server: document store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must cover a full streamed answer.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		chat:    svc,
		indexer: indexer,
		docs:    docs,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: cfg.Metrics,
	}
	s.metrics.trackPending(svc.Pending)

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	rl.onReject = s.metrics.rateLimited
	s.stopRL = stop

	if cfg.APIKey == "" {
		s.log.Warn("server: DOCCHAT_API_KEY is not set, API authentication is disabled")
	}
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, s.metrics.instrument(name, h))
	}
	limited := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.metrics.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", limited("chat", s.handleChat))
	mux.Handle("GET /api/stream", protected("stream", s.handleStream))
	mux.Handle("POST /api/createIndex", limited("create_index", s.handleCreateIndex))
	mux.Handle("POST /api/resetIndex", limited("reset_index", s.handleResetIndex))
	mux.Handle("POST /api/upload", limited("upload", s.handleUpload))
	mux.Handle("GET /api/files", protected("files", s.handleFiles))
	mux.Handle("POST /api/deleteFile", protected("delete_file", s.handleDeleteFile))
	mux.Handle("GET /api/health", s.metrics.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.metrics.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the root HTTP handler. Used by tests to drive the full
// middleware chain without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat. The body is either plain text or a
// JSON object {"message": "..."}; the response carries the conversation id
// to subscribe to.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxQuestionBytes))
	if err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	question := string(body)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.metrics.chatSubmissionsTotal.WithLabelValues("invalid").Inc()
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		question = req.Message
	}

	id, err := s.chat.Submit(strings.TrimSpace(question))
	if err != nil {
		s.metrics.chatSubmissionsTotal.WithLabelValues("invalid").Inc()
		writeJSONError(w, "message is required", http.StatusBadRequest)
		return
	}
	s.metrics.chatSubmissionsTotal.WithLabelValues("ok").Inc()
	log.Info("chat: question submitted", slog.String("conversation_id", id))

	writeJSON(w, http.StatusOK, chatResponse{ConversationID: id})
}

// handleStream handles GET /api/stream?conversationId=<id>. It opens the
// conversation and relays its events as SSE frames. An unknown or consumed
// id is rejected with 404 before any frame is written. Disconnecting
// cancels generation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.URL.Query().Get("conversationId")
	if id == "" {
		writeJSONError(w, "conversationId is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	a, err := s.chat.Open(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		s.metrics.streamsTotal.WithLabelValues("not_found").Inc()
		writeJSONError(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.metrics.streamsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, "failed to open conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()

	sse := &sseWriter{w: w, flusher: flusher}
	outcome := relay(r.Context(), log, a, sse)

	s.metrics.observeStream(outcome, time.Since(start), a)
	log.Info("chat: stream finished",
		slog.String("conversation_id", id),
		slog.String("outcome", outcome),
		slog.Int("frames", sse.frames),
		slog.Int("queue_high_water", a.HighWater()),
		slog.Duration("duration", time.Since(start)),
	)
}

// relay drains a onto sse until the terminal event, a write failure, or ctx
// cancellation, and returns the outcome label. Generation errors are logged;
// the client only sees a fixed message.
func relay(ctx context.Context, log *slog.Logger, a *stream.Adapter, sse *sseWriter) string {
	for {
		ev, err := a.Next(ctx)
		if errors.Is(err, io.EOF) {
			return "completed"
		}
		if err != nil {
			return "cancelled"
		}

		switch ev.Kind {
		case stream.KindError:
			if ctx.Err() != nil {
				return "cancelled"
			}
			if ev.Err != nil {
				log.Error("chat: generation failed", slog.String("error", ev.Err.Error()))
			}
			payload, _ := json.Marshal(errorFrame{Error: generationFailedMsg})
			_ = sse.event("error", payload)
			return "failed"
		default:
			if err := sse.data(stream.Encode(stream.FrameOf(ev))); err != nil {
				return "cancelled"
			}
			if ev.Kind == stream.KindComplete {
				return "completed"
			}
		}
	}
}

// sseWriter emits Server-Sent Event frames and flushes after each one.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter
	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
	// frames counts data frames written.
	frames int
}

// data writes one unnamed event. payload is JSON, so it never contains a
// raw newline.
func (s *sseWriter) data(payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.frames++
	s.flusher.Flush()
	return nil
}

// event writes one named event.
func (s *sseWriter) event(name string, payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON-formatted error response with the given status code.
func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, statusResponse{Error: msg})
}
