// Package store publishes the current document generation to readers and
// serializes updates.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/index"
)

// Generator produces a new generation. current is the published one, or
// nil before the first successful update.
type Generator interface {
	Generate(ctx context.Context, current *index.Generation) (*index.Generation, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, current *index.Generation) (*index.Generation, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, current *index.Generation) (*index.Generation, error) {
	return f(ctx, current)
}

// Store holds the current generation. Reads are lock-free; a failed update
// leaves the published generation untouched.
type Store struct {
	gen     Generator
	logger  *slog.Logger
	current atomic.Pointer[index.Generation]
	group   singleflight.Group

	lastErr atomic.Pointer[updateError]

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// ErrClosed is returned by TriggerUpdate after Close
var ErrClosed = errors.New("store closed")

type updateError struct {
	err error
	at  time.Time
}

// New creates an empty store
func New(gen Generator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{gen: gen, logger: logger}
}

// TriggerUpdate runs an update cycle, or joins the one already running.
// The cycle itself is detached from ctx; cancelling ctx only stops the
// caller from waiting.
func (s *Store) TriggerUpdate(ctx context.Context) (*index.Generation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	ch := s.group.DoChan("update", func() (any, error) {
		return s.update(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		go func() {
			<-ch
			s.inflight.Done()
		}()
		return nil, ctx.Err()
	case res := <-ch:
		s.inflight.Done()
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*index.Generation), nil
	}
}

// Close refuses further updates and waits for a running cycle to finish,
// including one whose callers have all given up. Reads keep working.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inflight.Wait()
}

func (s *Store) update(ctx context.Context) (*index.Generation, error) {
	prev := s.current.Load()
	next, err := s.gen.Generate(ctx, prev)
	if err != nil {
		s.lastErr.Store(&updateError{err: err, at: time.Now()})
		return nil, err
	}

	s.current.Store(next)
	s.lastErr.Store(nil)
	if prev == nil {
		s.logger.Info("store ready", "generation", next.ID, "documents", next.Len())
	} else {
		s.logger.Info("generation replaced", "old", prev.ID, "new", next.ID, "documents", next.Len())
	}
	return next, nil
}

// Ready reports whether a generation has been published
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Generation returns the published generation, or nil before the first
// successful update
func (s *Store) Generation() *index.Generation {
	return s.current.Load()
}

// LastFailure returns when the most recent update failed and why. The
// error is nil when the latest update succeeded.
func (s *Store) LastFailure() (time.Time, error) {
	e := s.lastErr.Load()
	if e == nil {
		return time.Time{}, nil
	}
	return e.at, e.err
}

// LookupByURL finds the document served at url
func (s *Store) LookupByURL(url string) (*content.Document, bool) {
	g := s.current.Load()
	if g == nil {
		return nil, false
	}
	return g.Lookup(url)
}

// ListIndex returns up to count posts; count <= 0 returns all
func (s *Store) ListIndex(count int, newestFirst bool) []*content.Document {
	g := s.current.Load()
	if g == nil {
		return nil
	}
	return g.Posts(count, newestFirst)
}

// ListByAuthor returns the documents created by the author with key
func (s *Store) ListByAuthor(key string) []*content.Document {
	g := s.current.Load()
	if g == nil {
		return nil
	}
	return g.ByAuthor(key)
}

// Authors lists every author in the published generation
func (s *Store) Authors() []index.AuthorSummary {
	g := s.current.Load()
	if g == nil {
		return nil
	}
	return g.Authors()
}

// ListByTimeRange returns posts created within [from, to]
func (s *Store) ListByTimeRange(from, to time.Time) []*content.Document {
	g := s.current.Load()
	if g == nil {
		return nil
	}
	return g.TimeRange(from, to)
}

// Search runs a full-text query
func (s *Store) Search(query string, limit int) ([]index.Hit, error) {
	g := s.current.Load()
	if g == nil {
		return nil, nil
	}
	return g.Search(query, limit)
}
