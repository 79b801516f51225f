// Package watcher ingests documents dropped into the raw document directory
// while the server runs. Only newly created files are ingested: the index is
// append-only, so re-ingesting an edited file would duplicate its chunks.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/docchat-go/internal/logging"
)

// DefaultDebounce is how long a new file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// IngestFunc ingests one file and returns the number of chunks added.
type IngestFunc func(ctx context.Context, path string) (int, error)

// Watcher watches a single directory for new eligible files.
type Watcher struct {
	dir      string
	allow    func(name string) bool
	ingest   IngestFunc
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New returns a Watcher for dir. allow filters file names; nil accepts all.
func New(dir string, allow func(name string) bool, ingest IngestFunc, opts ...Option) (*Watcher, error) {
	if ingest == nil {
		return nil, fmt.Errorf("watcher: ingest func must not be nil")
	}
	w := &Watcher{
		dir:      dir,
		allow:    allow,
		ingest:   ingest,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. The directory is created if missing.
// Pending ingestions are cancelled with ctx and waited for before Run
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("watcher: create %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", w.dir, err)
	}
	log.Info("watcher: watching for new documents", slog.String("dir", w.dir))

	defer w.wg.Wait()
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher: fsnotify error", slog.Any("error", err))
		}
	}
}

// handle schedules ingestion for new files and pushes back the deadline
// while a pending file is still being written.
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if w.allow != nil && !w.allow(filepath.Base(ev.Name)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	t, pending := w.pending[ev.Name]
	switch {
	case ev.Has(fsnotify.Create):
		if pending {
			w.postpone(t)
			return
		}
		w.wg.Add(1)
		w.pending[ev.Name] = time.AfterFunc(w.debounce, func() {
			defer w.wg.Done()
			w.fire(ctx, ev.Name)
		})
	case ev.Has(fsnotify.Write) && pending:
		w.postpone(t)
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if pending && t.Stop() {
			delete(w.pending, ev.Name)
			w.wg.Done()
		}
	}
}

// postpone restarts a timer that has not fired yet. A timer that already
// fired is left alone so its callback runs exactly once.
func (w *Watcher) postpone(t *time.Timer) {
	if t.Stop() {
		t.Reset(w.debounce)
	}
}

// fire ingests path once its debounce timer expires.
func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	log := logging.FromContext(ctx)
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	n, err := w.ingest(ctx, path)
	if err != nil {
		log.Error("watcher: ingestion failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	log.Info("watcher: ingested new document", slog.String("path", path), slog.Int("chunks", n))
}

// stopPending cancels timers that have not fired yet.
func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}
