package stream

import (
	"errors"
	"testing"
)

func Test_Encode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		frame Frame
		want  string
	}{
		{Frame{Text: "Hi", Done: false}, `{"text":"Hi","done":false}`},
		{Frame{Text: "line1\nline2", Done: true}, `{"text":"line1\nline2","done":true}`},
		{Frame{Text: `say "x"`}, `{"text":"say \"x\"","done":false}`},
	}
	for _, tc := range cases {
		if got := string(Encode(tc.frame)); got != tc.want {
			t.Errorf("Encode(%+v) = %s, want %s", tc.frame, got, tc.want)
		}
	}
}

// Not parallel: swaps the package-level marshal func.
func Test_Encode_FailureYieldsEmpty(t *testing.T) {
	orig := marshal
	marshal = func(any) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { marshal = orig }()

	if got := Encode(Frame{Text: "x"}); len(got) != 0 {
		t.Errorf("want empty payload, got %q", got)
	}
}

func Test_FrameOf(t *testing.T) {
	t.Parallel()
	if f := FrameOf(Event{Kind: KindPartial, Text: "a"}); f.Done {
		t.Error("partial frame must not be done")
	}
	if f := FrameOf(Event{Kind: KindComplete, Text: "ab"}); !f.Done || f.Text != "ab" {
		t.Errorf("complete frame = %+v", f)
	}
}

func Test_KindString(t *testing.T) {
	t.Parallel()
	for k, want := range map[Kind]string{KindPartial: "partial", KindComplete: "complete", KindError: "error", 9: "Kind(9)"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
