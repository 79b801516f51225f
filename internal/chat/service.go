// Package chat ties the request path together: a question is parked in the
// conversation registry at submission, and opening its stream retrieves
// contexts, starts generation, and returns the stream adapter the caller
// drains.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/54b3r/docchat-go/internal/conversation"
	"github.com/54b3r/docchat-go/internal/generation"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/rag"
	"github.com/54b3r/docchat-go/internal/store"
	"github.com/54b3r/docchat-go/internal/stream"
)

// ErrEmptyQuestion is returned by Submit for blank input.
var ErrEmptyQuestion = errors.New("chat: question must not be empty")

// Searcher returns context passages for a query. rag.Retriever satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) []string
}

// Generator starts answer generation. generation.Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []string, sink stream.Handler)
}

// Recorder persists finished answers. store.SQLiteStore satisfies it.
type Recorder interface {
	Append(ctx context.Context, t store.Transcript) error
}

var (
	_ Searcher  = (*rag.Retriever)(nil)
	_ Generator = (*generation.Orchestrator)(nil)
)

// Options holds optional Service collaborators.
type Options struct {
	// TopK is the number of contexts retrieved per question. Defaults to
	// rag.DefaultTopK.
	TopK int

	// Recorder, when set, receives a transcript for every completed answer.
	Recorder Recorder
}

// Service answers questions. It owns the conversation registry.
type Service struct {
	registry  *conversation.Registry
	searcher  Searcher
	generator Generator
	opts      Options
}

// NewService constructs a Service. registry, searcher and generator are
// required.
func NewService(registry *conversation.Registry, searcher Searcher, generator Generator, opts *Options) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("chat: registry must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("chat: searcher must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("chat: generator must not be nil")
	}
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.TopK <= 0 {
		o.TopK = rag.DefaultTopK
	}
	return &Service{registry: registry, searcher: searcher, generator: generator, opts: o}, nil
}

// Pending returns the number of submitted questions whose stream has not
// been opened.
func (s *Service) Pending() int { return s.registry.Len() }

// Submit parks question and returns its conversation id.
func (s *Service) Submit(question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	return s.registry.Submit(question), nil
}

// Open claims the conversation id, retrieves contexts and starts generation
// bound to ctx. It returns conversation.ErrNotFound for an unknown or
// already-opened id. Cancelling ctx stops generation.
func (s *Service) Open(ctx context.Context, id string) (*stream.Adapter, error) {
	question, err := s.registry.Take(id)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).With(slog.String("conversation_id", id))
	ctx = logging.WithLogger(ctx, log)

	contexts := s.searcher.Search(ctx, question, s.opts.TopK)
	log.Info("chat: contexts retrieved", slog.Int("contexts", len(contexts)))

	a := stream.NewAdapter()

	var sink stream.Handler = a
	if s.opts.Recorder != nil {
		sink = &recordingHandler{
			Handler: a,
			ctx:     context.WithoutCancel(ctx),
			rec:     s.opts.Recorder,
			entry: store.Transcript{
				ConversationID: id,
				Question:       question,
				Contexts:       len(contexts),
			},
		}
	}

	s.generator.Generate(ctx, question, contexts, sink)
	return a, nil
}

// Ask submits question, drains its stream and returns the full answer.
// onPartial, when set, receives each fragment as it arrives.
func (s *Service) Ask(ctx context.Context, question string, onPartial func(string)) (string, error) {
	id, err := s.Submit(question)
	if err != nil {
		return "", err
	}
	a, err := s.Open(ctx, id)
	if err != nil {
		return "", err
	}
	for {
		ev, err := a.Next(ctx)
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("chat: stream ended without completion")
		}
		if err != nil {
			return "", err
		}
		switch ev.Kind {
		case stream.KindPartial:
			if onPartial != nil {
				onPartial(ev.Text)
			}
		case stream.KindComplete:
			return ev.Text, nil
		case stream.KindError:
			return "", fmt.Errorf("chat: generation failed: %w", ev.Err)
		}
	}
}

// recordingHandler forwards to the wrapped handler and records the
// transcript once the answer completes.
type recordingHandler struct {
	stream.Handler
	ctx   context.Context
	rec   Recorder
	entry store.Transcript
}

func (h *recordingHandler) OnComplete(fullText string) {
	h.Handler.OnComplete(fullText)
	t := h.entry
	t.Answer = fullText
	if err := h.rec.Append(h.ctx, t); err != nil {
		logging.FromContext(h.ctx).Warn("chat: failed to record transcript", slog.String("error", err.Error()))
	}
}
