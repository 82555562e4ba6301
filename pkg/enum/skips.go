package enum

import (
	"context"
	"slices"
	"sync"
)

// Skips collects the directories, pages and lists an enumeration gave up
// on. A pass that recorded any skip did not see everything beneath those
// paths.
type Skips struct {
	mu    sync.Mutex
	paths []string
}

type skipsKey struct{}

// WithSkips returns a context under which every Traverser, Paginator and
// crawler reports its skipped paths to s.
func WithSkips(ctx context.Context, s *Skips) context.Context {
	return context.WithValue(ctx, skipsKey{}, s)
}

// NoteSkip records path on the Skips carried by ctx, if any.
func NoteSkip(ctx context.Context, path string) {
	s, ok := ctx.Value(skipsKey{}).(*Skips)
	if !ok || s == nil {
		return
	}
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

// Paths returns the recorded paths in the order they were skipped.
func (s *Skips) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.paths)
}
