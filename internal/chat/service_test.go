package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/54b3r/docchat-go/internal/conversation"
	"github.com/54b3r/docchat-go/internal/store"
	"github.com/54b3r/docchat-go/internal/stream"
)

type fakeSearcher struct {
	contexts []string
	queries  []string
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ int) []string {
	f.queries = append(f.queries, q)
	return f.contexts
}

// scriptedGenerator replays fragments asynchronously, then completes or
// fails.
type scriptedGenerator struct {
	fragments []string
	err       error
	gotCtx    []string
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string, contexts []string, sink stream.Handler) {
	g.gotCtx = contexts
	go func() {
		full := ""
		for _, f := range g.fragments {
			full += f
			sink.OnPartial(f)
		}
		if g.err != nil {
			sink.OnError(g.err)
			return
		}
		sink.OnComplete(full)
	}()
}

type memRecorder struct {
	mu   sync.Mutex
	got  []store.Transcript
	done chan struct{}
}

func (m *memRecorder) Append(_ context.Context, t store.Transcript) error {
	m.mu.Lock()
	m.got = append(m.got, t)
	m.mu.Unlock()
	close(m.done)
	return nil
}

func newService(t *testing.T, s Searcher, g Generator, opts *Options) *Service {
	t.Helper()
	svc, err := NewService(conversation.NewRegistry(), s, g, opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func Test_Service_SubmitRejectsBlank(t *testing.T) {
	t.Parallel()
	svc := newService(t, &fakeSearcher{}, &scriptedGenerator{}, nil)
	if _, err := svc.Submit("   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("want ErrEmptyQuestion, got %v", err)
	}
}

func Test_Service_OpenStreamsInOrder(t *testing.T) {
	t.Parallel()
	search := &fakeSearcher{contexts: []string{"Refunds within 30 days."}}
	gen := &scriptedGenerator{fragments: []string{"Hel", "lo"}}
	svc := newService(t, search, gen, nil)

	id, err := svc.Submit("What is the refund window?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	a, err := svc.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []stream.Frame
	for {
		ev, err := a.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, stream.FrameOf(ev))
	}

	want := []stream.Frame{{Text: "Hel"}, {Text: "lo"}, {Text: "Hello", Done: true}}
	if len(got) != len(want) {
		t.Fatalf("frames = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(search.queries) != 1 || search.queries[0] != "What is the refund window?" {
		t.Errorf("unexpected queries: %v", search.queries)
	}
	if len(gen.gotCtx) != 1 {
		t.Errorf("generator got %d contexts, want 1", len(gen.gotCtx))
	}
}

func Test_Service_OpenTwiceIsNotFound(t *testing.T) {
	t.Parallel()
	svc := newService(t, &fakeSearcher{}, &scriptedGenerator{}, nil)
	id, _ := svc.Submit("q")
	if svc.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", svc.Pending())
	}
	if _, err := svc.Open(context.Background(), id); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := svc.Open(context.Background(), id); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("second Open: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Open(context.Background(), "never-issued"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("unknown id: want ErrNotFound, got %v", err)
	}
}

func Test_Service_AskRecordsTranscript(t *testing.T) {
	t.Parallel()
	rec := &memRecorder{done: make(chan struct{})}
	svc := newService(t,
		&fakeSearcher{contexts: []string{"a", "b"}},
		&scriptedGenerator{fragments: []string{"30 ", "days."}},
		&Options{Recorder: rec},
	)

	var partials []string
	answer, err := svc.Ask(context.Background(), "refund window?", func(s string) { partials = append(partials, s) })
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "30 days." {
		t.Errorf("answer = %q", answer)
	}
	if len(partials) != 2 {
		t.Errorf("partials = %v", partials)
	}

	<-rec.done
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.got) != 1 {
		t.Fatalf("transcripts = %d, want 1", len(rec.got))
	}
	tr := rec.got[0]
	if tr.Question != "refund window?" || tr.Answer != "30 days." || tr.Contexts != 2 || tr.ConversationID == "" {
		t.Errorf("unexpected transcript %+v", tr)
	}
}

func Test_Service_AskGenerationError(t *testing.T) {
	t.Parallel()
	cause := errors.New("provider down")
	svc := newService(t, &fakeSearcher{}, &scriptedGenerator{fragments: []string{"x"}, err: cause}, nil)

	_, err := svc.Ask(context.Background(), "q", nil)
	if !errors.Is(err, cause) {
		t.Errorf("want wrapped cause, got %v", err)
	}
	if svc.Pending() != 0 {
		t.Errorf("registry should be empty after Ask, len = %d", svc.Pending())
	}
}
