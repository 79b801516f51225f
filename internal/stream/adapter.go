package stream

import (
	"context"
	"io"
	"sync"
)

// State is the lifecycle position of an Adapter.
type State int

const (
	// StateIdle means no event has been produced yet.
	StateIdle State = iota
	// StateStreaming means at least one partial has been produced.
	StateStreaming
	// StateCompleted means a complete event ended the stream.
	StateCompleted
	// StateFailed means an error event ended the stream.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Adapter turns Handler callbacks into an ordered event sequence for a
// single consumer. Producers never block: events are queued in an unbounded
// slice, so a consumer that stops reading lets memory grow until the
// producer finishes. HighWater reports the deepest the queue has been.
//
// Once a terminal event has been queued, further callbacks are dropped.
type Adapter struct {
	mu        sync.Mutex
	state     State
	queue     []Event
	finished  bool // terminal event handed to the consumer
	dropped   int
	highWater int

	// ready holds at most one wake-up for the consumer.
	ready chan struct{}
}

var _ Handler = (*Adapter)(nil)

// NewAdapter returns an Adapter in StateIdle.
func NewAdapter() *Adapter {
	return &Adapter{ready: make(chan struct{}, 1)}
}

// OnPartial queues a fragment.
func (a *Adapter) OnPartial(text string) {
	a.push(Event{Kind: KindPartial, Text: text})
}

// OnComplete queues the full text and ends the stream.
func (a *Adapter) OnComplete(fullText string) {
	a.push(Event{Kind: KindComplete, Text: fullText})
}

// OnError queues the cause and ends the stream.
func (a *Adapter) OnError(err error) {
	a.push(Event{Kind: KindError, Err: err})
}

// push applies the state transition for ev and queues it, or drops it when
// the stream has already ended.
func (a *Adapter) push(ev Event) {
	a.mu.Lock()
	if a.state == StateCompleted || a.state == StateFailed {
		a.dropped++
		a.mu.Unlock()
		return
	}
	switch ev.Kind {
	case KindPartial:
		a.state = StateStreaming
	case KindComplete:
		a.state = StateCompleted
	case KindError:
		a.state = StateFailed
	}
	a.queue = append(a.queue, ev)
	a.highWater = max(a.highWater, len(a.queue))
	a.mu.Unlock()

	select {
	case a.ready <- struct{}{}:
	default:
	}
}

// Next blocks until the next event is available and returns it. After the
// terminal event has been returned, Next returns io.EOF. If ctx is done
// first, Next returns ctx.Err().
func (a *Adapter) Next(ctx context.Context) (Event, error) {
	for {
		a.mu.Lock()
		if len(a.queue) > 0 {
			ev := a.queue[0]
			a.queue[0] = Event{}
			a.queue = a.queue[1:]
			if ev.Terminal() {
				a.finished = true
			}
			a.mu.Unlock()
			return ev, nil
		}
		if a.finished {
			a.mu.Unlock()
			return Event{}, io.EOF
		}
		a.mu.Unlock()

		select {
		case <-a.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Events returns a channel carrying the stream in order. The channel is
// closed after the terminal event or when ctx is done.
func (a *Adapter) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			ev, err := a.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Terminal() {
				return
			}
		}
	}()
	return out
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Dropped returns the number of callbacks ignored after the stream ended.
func (a *Adapter) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// HighWater returns the largest queue depth observed.
func (a *Adapter) HighWater() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highWater
}
