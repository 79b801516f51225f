package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docchat-go/internal/chat"
	"github.com/54b3r/docchat-go/internal/docstore"
	"github.com/54b3r/docchat-go/internal/ingestion"
	"github.com/54b3r/docchat-go/internal/stream"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MaxUploadBytes caps the size of POST /api/upload bodies. Defaults to 10 MiB.
	MaxUploadBytes int64
	// Metrics is the metric set updated by handlers. If nil, a set registered
	// against prometheus.DefaultRegisterer is created.
	Metrics *Metrics
	// MetricsGatherer is scraped by GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// ChatService submits questions and opens their answer streams.
// *chat.Service satisfies it; tests inject a fake.
type ChatService interface {
	// Submit parks question and returns its conversation id.
	Submit(question string) (string, error)
	// Open claims id and starts generation bound to ctx.
	Open(ctx context.Context, id string) (*stream.Adapter, error)
	// Pending returns the number of unopened conversations.
	Pending() int
}

// Indexer populates and clears the vector index.
// *ingestion.Pipeline satisfies it.
type Indexer interface {
	// Ingest processes every document of src.
	Ingest(ctx context.Context, src ingestion.Source, progress func(string)) (ingestion.Result, error)
	// Reset removes every index entry.
	Reset(ctx context.Context) error
}

var (
	_ ChatService = (*chat.Service)(nil)
	_ Indexer     = (*ingestion.Pipeline)(nil)
)

// Server is the HTTP server that exposes the chat, ingestion and document
// APIs.
type Server struct {
	// chat answers questions.
	chat ChatService
	// indexer runs ingestion and resets.
	indexer Indexer
	// docs is the raw document directory.
	docs *docstore.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors updated by handlers.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language question.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// ConversationID is passed to GET /api/stream to receive the answer.
	ConversationID string `json:"conversationId"`
}

// errorFrame is the data payload of an SSE "error" event.
type errorFrame struct {
	// Error is the failure reason.
	Error string `json:"error"`
}

// statusResponse is the JSON response for the index and file mutation
// endpoints.
type statusResponse struct {
	// Success reports whether the operation succeeded.
	Success bool `json:"success"`
	// Message is a human-readable confirmation on success.
	Message string `json:"message,omitempty"`
	// Error is the failure reason.
	Error string `json:"error,omitempty"`
}

// indexResponse is the JSON response for POST /api/createIndex.
type indexResponse struct {
	statusResponse
	// Documents is the number of documents processed.
	Documents int `json:"documents"`
	// Chunks is the number of index entries added.
	Chunks int `json:"chunks"`
}

// filesResponse is the JSON response for GET /api/files.
type filesResponse struct {
	// Success is always true; listing a missing directory yields no files.
	Success bool `json:"success"`
	// Files describes each stored document.
	Files []docstore.FileInfo `json:"files"`
	// Count is len(Files).
	Count int `json:"count"`
}
