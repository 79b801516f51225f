package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat-go/internal/stream"
)

// Streamer implements generation.ChatStreamer over any eino chat model.
// Each call runs on its own goroutine and reports through the sink:
// one OnPartial per non-empty chunk, then OnComplete with the concatenated
// text, or OnError.
type Streamer struct {
	model    model.BaseChatModel
	handlers []callbacks.Handler
}

// NewStreamer wraps m. handlers (e.g. the Langfuse tracer) receive the
// model's start, stream and error callbacks for every call.
func NewStreamer(m model.BaseChatModel, handlers ...callbacks.Handler) *Streamer {
	return &Streamer{model: m, handlers: handlers}
}

// StreamChat starts generation and returns immediately. Cancelling ctx
// aborts the provider request and ends the stream with ctx.Err().
func (s *Streamer) StreamChat(ctx context.Context, msgs []*schema.Message, sink stream.Handler) {
	go s.run(ctx, msgs, sink)
}

func (s *Streamer) run(ctx context.Context, msgs []*schema.Message, sink stream.Handler) {
	if len(s.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "docchat",
			Component: components.ComponentOfChatModel,
		}, s.handlers...)
	}

	reader, err := s.model.Stream(ctx, msgs)
	if err != nil {
		sink.OnError(fmt.Errorf("provider: stream: %w", err))
		return
	}

	out := &onceSink{sink: sink}
	var closeOnce sync.Once
	closeReader := func() { closeOnce.Do(reader.Close) }
	defer closeReader()

	// A model that ignores ctx can leave Recv blocked; closing the reader
	// tells its writer to stop and the subscriber gets the cancellation now.
	stop := context.AfterFunc(ctx, func() {
		closeReader()
		out.fail(ctx.Err())
	})
	defer stop()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if ctxErr := ctx.Err(); ctxErr != nil {
			out.fail(ctxErr)
			return
		}
		if errors.Is(err, io.EOF) {
			out.complete(full.String())
			return
		}
		if err != nil {
			out.fail(fmt.Errorf("provider: stream recv: %w", err))
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		out.partial(chunk.Content)
	}
}

// onceSink serialises calls to sink and lets exactly one terminal event
// through. The receive loop and the cancellation callback race to end the
// stream.
type onceSink struct {
	mu   sync.Mutex
	done bool
	sink stream.Handler
}

func (o *onceSink) partial(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done {
		o.sink.OnPartial(text)
	}
}

func (o *onceSink) complete(fullText string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done {
		o.done = true
		o.sink.OnComplete(fullText)
	}
}

func (o *onceSink) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.done {
		o.done = true
		o.sink.OnError(err)
	}
}
