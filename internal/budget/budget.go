// Package budget provides token estimation and prompt trimming. Because
// docchat supports several model backends with different tokenizers, it uses
// a conservative character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// 8k-context models while leaving room for the answer. Override with
	// MODEL_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000

	// perMessageOverhead approximates the framing tokens most APIs add.
	perMessageOverhead = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs, summing
// role and content plus a per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimContexts drops retrieved contexts from the end (lowest ranked first)
// until fixedTokens plus the remaining contexts fit within maxTokens.
// fixedTokens covers everything that is never dropped: the system prompt,
// the question, and the template text. Contexts are never reordered.
//
// If even zero contexts exceed the budget the empty slice is returned; the
// caller decides whether to warn.
func TrimContexts(contexts []string, fixedTokens, maxTokens int) []string {
	if maxTokens <= 0 {
		return contexts
	}
	total := fixedTokens
	for i, c := range contexts {
		total += Estimate(c) + 1 // separator
		if total > maxTokens {
			return contexts[:i]
		}
	}
	return contexts
}
