package enum

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Traverser walks a directory tree depth-first. Only the listings on the
// current branch are held in memory.
type Traverser struct {
	lister Lister
	opts   options
}

// NewTraverser creates a Traverser over lister.
func NewTraverser(lister Lister, opts ...Option) *Traverser {
	return &Traverser{
		lister: lister,
		opts:   newOptions(opts),
	}
}

// Walk lists root and everything beneath it, calling callback for each item
// in pre-order (a folder before its children). The root itself is not
// emitted. Content is never read.
//
// A directory whose listing fails permanently, or keeps failing after all
// retries, is skipped with a warning and the walk continues with its
// siblings. Authentication failures, context cancellation and callback
// errors end the walk and are returned.
func (t *Traverser) Walk(ctx context.Context, root types.ItemDescriptor, callback func(types.ItemDescriptor) error) error {
	if err := t.walk(ctx, root, "", callback); err != nil {
		return err
	}
	if unmatched := t.opts.filter.Unmatched(); len(unmatched) > 0 {
		t.opts.logger.Warn("advanced rules matched no items; check for typos or rules similar to another rule",
			zap.Strings("patterns", unmatched))
	}
	return nil
}

func (t *Traverser) walk(ctx context.Context, dir types.ItemDescriptor, rel string, callback func(types.ItemDescriptor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	children, err := retry.Do(ctx, t.opts.policy, "list", dir.Path, func(ctx context.Context) ([]types.ItemDescriptor, error) {
		return t.lister.ListChildren(ctx, dir)
	})
	if err != nil {
		if abortsWalk(ctx, err) {
			return err
		}
		NoteSkip(ctx, dir.Path)
		t.opts.logger.Warn("skipping directory",
			zap.String("path", dir.Path),
			zap.Bool("retries_exhausted", isFatal(err)),
			zap.Error(err))
		return nil
	}

	for _, child := range children {
		childRel := joinRel(rel, child.Title)
		container := child.Kind.IsContainer()

		if t.ignored(childRel, container) {
			continue
		}

		if t.opts.filter.Match(childRel) {
			if err := callback(child); err != nil {
				return err
			}
		}

		if container && t.opts.filter.CanDescend(childRel) {
			if err := t.walk(ctx, child, childRel, callback); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Traverser) ignored(rel string, container bool) bool {
	if t.opts.ignore == nil {
		return false
	}
	if t.opts.ignore.MatchesPath(rel) {
		return true
	}
	return container && t.opts.ignore.MatchesPath(rel+"/")
}

// abortsWalk reports whether a listing error ends the whole enumeration
// instead of a single subtree.
func abortsWalk(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return types.IsAuthentication(err)
}

func isFatal(err error) bool {
	var fatal *types.FatalError
	return errors.As(err, &fatal)
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
