// Package generation assembles the retrieval-augmented prompt and hands it to
// a streaming chat capability, wiring the output into a stream.Handler.
package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat-go/internal/budget"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/stream"
)

// ChatStreamer is the streaming chat capability. StreamChat must return
// promptly and deliver its output asynchronously: zero or more OnPartial
// calls followed by exactly one OnComplete or OnError. Cancelling ctx must
// stop generation.
type ChatStreamer interface {
	StreamChat(ctx context.Context, msgs []*schema.Message, sink stream.Handler)
}

// Config holds orchestrator settings. Zero values select the defaults.
type Config struct {
	// SystemPrompt overrides the built-in system instruction.
	SystemPrompt string

	// UserTemplate overrides the built-in user template. It must contain
	// the {{question}} and {{context}} placeholders.
	UserTemplate string

	// MaxContextTokens is the prompt budget; lowest-ranked contexts are
	// dropped to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Orchestrator builds prompts and starts generation.
type Orchestrator struct {
	chat ChatStreamer
	cfg  Config
}

// NewOrchestrator constructs an Orchestrator around chat.
func NewOrchestrator(chat ChatStreamer, cfg *Config) (*Orchestrator, error) {
	if chat == nil {
		return nil, fmt.Errorf("generation: chat streamer must not be nil")
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = SystemPrompt
	}
	if c.UserTemplate == "" {
		c.UserTemplate = UserTemplate
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Orchestrator{chat: chat, cfg: c}, nil
}

// Messages returns the prompt Generate would send for question and
// contexts, after budget trimming.
func (o *Orchestrator) Messages(ctx context.Context, question string, contexts []string) []*schema.Message {
	fixed := budget.EstimateMessages(BuildMessages(o.cfg.SystemPrompt, o.cfg.UserTemplate, question, nil))
	kept := budget.TrimContexts(contexts, fixed, o.cfg.MaxContextTokens)
	if len(kept) < len(contexts) {
		logging.FromContext(ctx).Warn("generation: contexts trimmed to fit token budget",
			slog.Int("retrieved", len(contexts)),
			slog.Int("kept", len(kept)),
			slog.Int("budget_tokens", o.cfg.MaxContextTokens),
		)
	}
	return BuildMessages(o.cfg.SystemPrompt, o.cfg.UserTemplate, question, kept)
}

// Generate starts generation for question grounded on contexts. Output goes
// to sink; Generate does not wait for it.
func (o *Orchestrator) Generate(ctx context.Context, question string, contexts []string, sink stream.Handler) {
	msgs := o.Messages(ctx, question, contexts)
	logging.FromContext(ctx).Debug("generation: starting",
		slog.Int("contexts", len(contexts)),
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
	)
	o.chat.StreamChat(ctx, msgs, sink)
}
