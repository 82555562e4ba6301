package enum

import (
	"context"
	"sync"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Combined runs several sources sequentially and deduplicates emissions by
// document ID so each document is yielded at most once, e.g. when two site
// collections overlap.
type Combined struct {
	sources []Source
}

// NewCombined wraps the provided sources. They are run in order and
// duplicate documents (same _id) are suppressed.
func NewCombined(sources ...Source) *Combined {
	return &Combined{sources: sources}
}

// Docs runs each source in sequence, passing unique emissions to callback.
func (c *Combined) Docs(ctx context.Context, callback func(types.Emission) error) error {
	var mu sync.Mutex
	seen := make(map[string]bool)

	for _, s := range c.sources {
		err := s.Docs(ctx, func(e types.Emission) error {
			mu.Lock()
			if seen[e.Document.ID] {
				mu.Unlock()
				return nil
			}
			seen[e.Document.ID] = true
			mu.Unlock()

			return callback(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
