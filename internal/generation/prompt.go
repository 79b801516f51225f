package generation

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// FallbackAnswer is the sentence the model is told to give when the
// retrieved context does not contain the answer.
const FallbackAnswer = "I don’t have enough information to answer that."

// SystemPrompt instructs the model to answer strictly from the supplied
// context.
const SystemPrompt = `You are a helpful and factual AI assistant.
Use only the information provided in the retrieved context to answer the question.
If the answer cannot be found in the context, say "` + FallbackAnswer + `"

Follow these rules:
- Be concise, clear, and accurate.
- Do not fabricate or assume facts.
- Cite or refer to sources if available in the context.`

// UserTemplate is filled with the question and the joined contexts.
const UserTemplate = `Question:
{{question}}

Context (retrieved documents):
{{context}}

Instructions:
1. Read the question carefully.
2. Review all the provided context snippets.
3. Provide the best possible answer using only the given information.
4. If the context does not contain the answer, respond with:
"` + FallbackAnswer + `"`

// ContextSeparator joins retrieved contexts inside the user message.
const ContextSeparator = "\n\n"

// Placeholders substituted in the user template.
const (
	placeholderQuestion = "{{question}}"
	placeholderContext  = "{{context}}"
)

// BuildMessages returns the system and user messages for one question.
// Both placeholders are replaced in a single pass, so a question that itself
// contains "{{context}}" is inserted literally.
func BuildMessages(system, template, question string, contexts []string) []*schema.Message {
	r := strings.NewReplacer(
		placeholderQuestion, question,
		placeholderContext, strings.Join(contexts, ContextSeparator),
	)
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(r.Replace(template)),
	}
}
