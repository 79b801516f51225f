package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat-go/internal/stream"
)

// echoStreamer records the prompt and replies with two fragments.
type echoStreamer struct {
	got []*schema.Message
}

func (e *echoStreamer) StreamChat(_ context.Context, msgs []*schema.Message, sink stream.Handler) {
	e.got = msgs
	sink.OnPartial("ok")
	sink.OnPartial("!")
	sink.OnComplete("ok!")
}

func Test_BuildMessages(t *testing.T) {
	t.Parallel()
	msgs := BuildMessages(SystemPrompt, UserTemplate, "What is X?", []string{"X is a letter.", "X follows W."})

	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[1].Role != schema.User {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if !strings.Contains(msgs[0].Content, FallbackAnswer) {
		t.Error("system prompt must contain the fallback answer")
	}
	user := msgs[1].Content
	if !strings.Contains(user, "Question:\nWhat is X?\n") {
		t.Errorf("question not substituted:\n%s", user)
	}
	if !strings.Contains(user, "X is a letter.\n\nX follows W.") {
		t.Errorf("contexts not joined with blank line:\n%s", user)
	}
	if strings.Contains(user, "{{") {
		t.Errorf("placeholder left in user message:\n%s", user)
	}
}

func Test_BuildMessages_QuestionIsLiteral(t *testing.T) {
	t.Parallel()
	msgs := BuildMessages(SystemPrompt, UserTemplate, "what does {{context}} mean?", []string{"CTX"})
	user := msgs[1].Content
	if !strings.Contains(user, "what does {{context}} mean?") {
		t.Errorf("question was rewritten:\n%s", user)
	}
	if strings.Count(user, "CTX") != 1 {
		t.Errorf("context substituted more than once:\n%s", user)
	}
}

func Test_BuildMessages_NoContexts(t *testing.T) {
	t.Parallel()
	user := BuildMessages(SystemPrompt, UserTemplate, "q", nil)[1].Content
	if !strings.Contains(user, "Context (retrieved documents):\n\n") {
		t.Errorf("empty context block expected:\n%s", user)
	}
}

func Test_Orchestrator_Generate(t *testing.T) {
	t.Parallel()
	chat := &echoStreamer{}
	o, err := NewOrchestrator(chat, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	a := stream.NewAdapter()
	o.Generate(context.Background(), "q", []string{"c1"}, a)

	if len(chat.got) != 2 {
		t.Fatalf("streamer got %d messages", len(chat.got))
	}
	if a.State() != stream.StateCompleted {
		t.Errorf("adapter state = %v", a.State())
	}
}

func Test_Orchestrator_TrimsToBudget(t *testing.T) {
	t.Parallel()
	chat := &echoStreamer{}
	o, _ := NewOrchestrator(chat, &Config{MaxContextTokens: 400})

	big := strings.Repeat("y", 600) // ~150 tokens
	msgs := o.Messages(context.Background(), "q", []string{"keep-me", big, big})

	user := msgs[1].Content
	if !strings.Contains(user, "keep-me") {
		t.Error("highest ranked context was dropped")
	}
	if strings.Count(user, big) >= 2 {
		t.Error("expected lowest ranked context to be trimmed")
	}
}

func Test_NewOrchestrator_NilChat(t *testing.T) {
	t.Parallel()
	if _, err := NewOrchestrator(nil, nil); err == nil {
		t.Error("want error for nil streamer")
	}
}
