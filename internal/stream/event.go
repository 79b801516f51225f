// Package stream adapts a callback-driven token producer into an ordered,
// pull- or push-based sequence of events for exactly one consumer.
package stream

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant carried by an Event.
type Kind int

const (
	// KindPartial carries an incremental text fragment.
	KindPartial Kind = iota + 1
	// KindComplete carries the full generated text and ends the stream.
	KindComplete
	// KindError carries the failure cause and ends the stream.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindComplete:
		return "complete"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one item of a response stream.
type Event struct {
	Kind Kind
	// Text is the fragment (partial) or the full response (complete).
	Text string
	// Err is set for KindError.
	Err error
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// Handler receives generation callbacks. The Adapter implements it; the
// generation layer drives it.
type Handler interface {
	OnPartial(text string)
	OnComplete(fullText string)
	OnError(err error)
}

// Frame is the wire form of a non-error event.
type Frame struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// FrameOf converts a partial or complete event to its frame.
func FrameOf(ev Event) Frame {
	return Frame{Text: ev.Text, Done: ev.Terminal()}
}

// marshal is swapped in tests to exercise the failure path.
var marshal = json.Marshal

// Encode serialises f as JSON. Newlines and control characters in the text
// are escaped, so the payload is always a single line. If serialisation
// fails the payload is empty and the caller should still emit it.
func Encode(f Frame) []byte {
	b, err := marshal(f)
	if err != nil {
		return []byte{}
	}
	return b
}
