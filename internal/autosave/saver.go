// Package autosave delays comment writes until editing pauses, so a burst
// of keystrokes on one comment becomes a single PUT to the backend.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"annotate/internal/models"
)

// DefaultDelay is the quiet period before a scheduled save is written.
const DefaultDelay = 500 * time.Millisecond

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("autosave: saver closed")

// SaveFunc persists one comment. store.CommentStore.UpdateComment fits.
type SaveFunc func(ctx context.Context, c models.Comment) error

// Option customises a Saver.
type Option func(*Saver)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithTimeout bounds writes started by the timer. Flush uses the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithOnSaved registers a callback run after every write attempt.
func WithOnSaved(fn func(models.Comment, error)) Option {
	return func(s *Saver) { s.onSaved = fn }
}

type entry struct {
	debouncer *Debouncer
	pending   *models.Comment
	inflight  bool
	done      chan struct{}
	lastErr   error
}

// Saver debounces writes per comment ID. At most one write per ID is in
// flight; a value scheduled meanwhile is written after it, and the last
// scheduled value is always the one that lands. A failed write is not
// retried by the timer: the value stays pending until the next Schedule,
// Flush or Close.
type Saver struct {
	save    SaveFunc
	delay   time.Duration
	timeout time.Duration
	onSaved func(models.Comment, error)

	mu      sync.Mutex
	entries map[int64]*entry
	closed  bool
}

// NewSaver creates a Saver writing through save.
func NewSaver(save SaveFunc, opts ...Option) *Saver {
	s := &Saver{
		save:    save,
		delay:   DefaultDelay,
		timeout: 10 * time.Second,
		entries: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records c as the latest value for its ID and restarts that ID's
// quiet period.
func (s *Saver) Schedule(c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	e, ok := s.entries[c.ID]
	if !ok {
		id := c.ID
		e = &entry{debouncer: NewDebouncer(s.delay, func() { s.fire(id) })}
		s.entries[c.ID] = e
	}
	e.pending = &c
	e.lastErr = nil
	e.debouncer.Trigger()
	return nil
}

// Pending reports whether a write for id is waiting, in flight, or failed
// and not yet retried.
func (s *Saver) Pending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && (e.pending != nil || e.inflight)
}

// Err returns the error of the last failed write for id while its value is
// still pending, or nil.
func (s *Saver) Err(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.pending != nil {
		return e.lastErr
	}
	return nil
}

// Flush writes the pending value for id now. If a write is already in
// flight it waits for it first. Without anything pending it returns nil.
func (s *Saver) Flush(ctx context.Context, id int64) error {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			s.mu.Unlock()
			return nil
		}
		if e.inflight {
			done := e.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if e.pending == nil {
			s.mu.Unlock()
			return nil
		}

		c := *e.pending
		e.pending = nil
		e.inflight = true
		e.done = make(chan struct{})
		e.debouncer.Stop()
		s.mu.Unlock()

		return s.write(ctx, e, c)
	}
}

// FlushAll flushes every ID concurrently and returns the first error.
func (s *Saver) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return s.Flush(ctx, id)
		})
	}
	return g.Wait()
}

// Close stops accepting new values and flushes what is pending.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.FlushAll(ctx)
}

func (s *Saver) fire(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// Errors are already logged and reported through onSaved.
	_ = s.Flush(ctx, id)
}

func (s *Saver) write(ctx context.Context, e *entry, c models.Comment) error {
	err := s.save(ctx, c)

	s.mu.Lock()
	e.inflight = false
	close(e.done)
	switch {
	case err != nil && e.pending == nil:
		// Keep the value so Pending stays true and the next Flush retries it.
		e.pending = &c
		e.lastErr = err
	case err == nil && e.pending == nil && s.entries[c.ID] == e:
		delete(s.entries, c.ID)
	case err == nil:
		e.lastErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		log.WithFields(log.Fields{"comment_id": c.ID}).WithError(err).Warn("autosave: write failed")
	} else {
		log.WithFields(log.Fields{"comment_id": c.ID}).Debug("autosave: comment saved")
	}
	if s.onSaved != nil {
		s.onSaved(c, err)
	}
	return err
}
