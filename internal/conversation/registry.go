// Package conversation holds questions between the moment a client submits
// them and the moment it opens the response stream. Each entry can be taken
// exactly once.
package conversation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Take when the id was never issued or has
// already been consumed.
var ErrNotFound = errors.New("conversation: not found")

// Registry maps conversation ids to pending questions. The zero value is not
// usable; construct with NewRegistry. Entries that are never taken stay in
// memory for the life of the process.
type Registry struct {
	mu      sync.Mutex
	pending map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]string)}
}

// Submit stores question under a new random (v4) UUID and returns the id.
func (r *Registry) Submit(question string) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.pending[id] = question
	r.mu.Unlock()

	return id
}

// Take removes and returns the question stored under id. Of several
// concurrent Take calls for the same id, exactly one succeeds.
func (r *Registry) Take(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.pending[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.pending, id)
	return q, nil
}

// Len reports the number of questions waiting to be taken.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
