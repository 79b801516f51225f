package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// drain reads events until io.EOF.
func drain(t *testing.T, a *Adapter) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []Event
	for {
		ev, err := a.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func Test_Adapter_PartialsThenComplete(t *testing.T) {
	t.Parallel()
	a := NewAdapter()
	a.OnPartial("He")
	a.OnPartial("llo")
	a.OnComplete("Hello")

	got := drain(t, a)
	want := []Frame{{"He", false}, {"llo", false}, {"Hello", true}}
	if len(got) != len(want) {
		t.Fatalf("want %d events, got %d", len(want), len(got))
	}
	for i, w := range want {
		if f := FrameOf(got[i]); f != w {
			t.Errorf("frame %d = %+v, want %+v", i, f, w)
		}
	}
	if a.State() != StateCompleted {
		t.Errorf("state = %v", a.State())
	}
}

func Test_Adapter_NothingAfterError(t *testing.T) {
	t.Parallel()
	a := NewAdapter()
	cause := errors.New("model unavailable")

	a.OnPartial("x")
	a.OnError(cause)
	a.OnPartial("late")
	a.OnComplete("late")

	got := drain(t, a)
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d: %+v", len(got), got)
	}
	if got[1].Kind != KindError || !errors.Is(got[1].Err, cause) {
		t.Errorf("last event = %+v, want error", got[1])
	}
	if a.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", a.Dropped())
	}
	if a.State() != StateFailed {
		t.Errorf("state = %v", a.State())
	}
}

func Test_Adapter_Transitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		drive func(*Adapter)
		want  State
	}{
		{"idle", func(*Adapter) {}, StateIdle},
		{"partial", func(a *Adapter) { a.OnPartial("a") }, StateStreaming},
		{"complete from idle", func(a *Adapter) { a.OnComplete("") }, StateCompleted},
		{"error from idle", func(a *Adapter) { a.OnError(errors.New("x")) }, StateFailed},
		{"complete then error", func(a *Adapter) { a.OnComplete("a"); a.OnError(errors.New("x")) }, StateCompleted},
	}
	for _, tc := range cases {
		a := NewAdapter()
		tc.drive(a)
		if got := a.State(); got != tc.want {
			t.Errorf("%s: state = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func Test_Adapter_ConsumerWaitsForProducer(t *testing.T) {
	t.Parallel()
	a := NewAdapter()
	go func() {
		for _, s := range []string{"a", "b", "c"} {
			time.Sleep(5 * time.Millisecond)
			a.OnPartial(s)
		}
		a.OnComplete("abc")
	}()

	var sb strings.Builder
	for _, ev := range drain(t, a) {
		if ev.Kind == KindPartial {
			sb.WriteString(ev.Text)
		}
	}
	if sb.String() != "abc" {
		t.Errorf("partials joined = %q, want abc", sb.String())
	}
}

func Test_Adapter_NextHonoursContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAdapter().Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func Test_Adapter_UnboundedQueue(t *testing.T) {
	t.Parallel()
	a := NewAdapter()
	const n = 10000
	for range n {
		a.OnPartial("t")
	}
	a.OnComplete("done")

	if a.HighWater() != n+1 {
		t.Errorf("HighWater() = %d, want %d", a.HighWater(), n+1)
	}
	if got := len(drain(t, a)); got != n+1 {
		t.Errorf("drained %d events, want %d", got, n+1)
	}
}

func Test_Adapter_EventsChannel(t *testing.T) {
	t.Parallel()
	a := NewAdapter()
	a.OnPartial("x")
	a.OnComplete("x")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var kinds []Kind
	for ev := range a.Events(ctx) {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != KindPartial || kinds[1] != KindComplete {
		t.Errorf("kinds = %v", kinds)
	}
}
