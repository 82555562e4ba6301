package enum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/rule"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// fakeLister serves a fixed tree and can fail listings per directory.
type fakeLister struct {
	mu       sync.Mutex
	children map[string][]types.ItemDescriptor
	failures map[string][]error // consumed in order
	sticky   map[string]error   // returned on every call
	calls    map[string]int
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		children: make(map[string][]types.ItemDescriptor),
		failures: make(map[string][]error),
		sticky:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeLister) add(parent string, items ...types.ItemDescriptor) {
	f.children[parent] = append(f.children[parent], items...)
}

func (f *fakeLister) ListChildren(ctx context.Context, dir types.ItemDescriptor) ([]types.ItemDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[dir.Path]++
	if err, ok := f.sticky[dir.Path]; ok {
		return nil, err
	}
	if queue := f.failures[dir.Path]; len(queue) > 0 {
		f.failures[dir.Path] = queue[1:]
		return nil, queue[0]
	}
	return f.children[dir.Path], nil
}

func folder(path, title string) types.ItemDescriptor {
	return types.ItemDescriptor{ID: path, Path: path, Title: title, Kind: types.KindFolder}
}

func file(path, title string, size int64) types.ItemDescriptor {
	return types.ItemDescriptor{ID: path, Path: path, Title: title, Kind: types.KindFile, Size: size}
}

// sampleTree builds root -> a -> {b -> c (file), B}.
func sampleTree() (*fakeLister, types.ItemDescriptor) {
	l := newFakeLister()
	root := folder("share", "")
	l.add("share", folder("share/a", "a"))
	l.add("share/a", folder("share/a/b", "b"), folder("share/a/B", "B"))
	l.add("share/a/b", file("share/a/b/c", "c", 30))
	return l, root
}

func collect(t *testing.T, tr *Traverser, root types.ItemDescriptor) []string {
	t.Helper()
	var paths []string
	err := tr.Walk(context.Background(), root, func(item types.ItemDescriptor) error {
		paths = append(paths, item.Path)
		return nil
	})
	require.NoError(t, err)
	return paths
}

func noDelay() Option {
	return WithPolicy(retry.DefaultPolicy().NoDelay())
}

func mustRules(t *testing.T, patterns ...string) *rule.Filter {
	t.Helper()
	var rules []types.Rule
	for _, p := range patterns {
		rules = append(rules, types.Rule{Pattern: p})
	}
	f, err := rule.NewFilter(rules)
	require.NoError(t, err)
	return f
}

func TestTraverser_PreOrder(t *testing.T) {
	lister, root := sampleTree()
	tr := NewTraverser(lister, noDelay(), WithLogger(zaptest.NewLogger(t)))

	paths := collect(t, tr, root)

	assert.Equal(t, []string{"share/a", "share/a/b", "share/a/b/c", "share/a/B"}, paths)
}

func TestTraverser_RetryThenSucceedIsTransparent(t *testing.T) {
	baseline, root := sampleTree()
	want := collect(t, NewTraverser(baseline, noDelay()), root)

	flaky, _ := sampleTree()
	flaky.failures["share/a"] = []error{
		&types.StatusError{Code: 503},
		&types.RemoteError{Op: "list", Path: "share/a", Transient: true, Err: errors.New("connection reset")},
	}

	got := collect(t, NewTraverser(flaky, noDelay()), root)

	assert.Equal(t, want, got)
	assert.Equal(t, 3, flaky.calls["share/a"], "listing should be retried on the same directory")
	assert.Equal(t, 1, flaky.calls["share"], "walk must not restart from the root")
}

func TestTraverser_ExhaustedSubtreeSkipped(t *testing.T) {
	lister, root := sampleTree()
	lister.sticky["share/a/b"] = &types.StatusError{Code: 500}

	core, logs := observer.New(zap.WarnLevel)
	tr := NewTraverser(lister, noDelay(), WithLogger(zap.New(core)))
	skips := &Skips{}

	var paths []string
	err := tr.Walk(WithSkips(context.Background(), skips), root, func(item types.ItemDescriptor) error {
		paths = append(paths, item.Path)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"share/a", "share/a/b", "share/a/B"}, paths)
	assert.Equal(t, []string{"share/a/b"}, skips.Paths())
	assert.Equal(t, retry.DefaultMaxAttempts, lister.calls["share/a/b"])
	require.Equal(t, 1, logs.FilterMessage("skipping directory").Len())
	entry := logs.FilterMessage("skipping directory").All()[0]
	assert.Equal(t, "share/a/b", entry.ContextMap()["path"])
	assert.Equal(t, true, entry.ContextMap()["retries_exhausted"])
}

func TestTraverser_PermanentFailureNotRetried(t *testing.T) {
	lister, root := sampleTree()
	lister.sticky["share/a/b"] = &os.PathError{Op: "readdir", Path: "share/a/b", Err: os.ErrPermission}

	paths := collect(t, NewTraverser(lister, noDelay()), root)

	assert.Equal(t, []string{"share/a", "share/a/b", "share/a/B"}, paths)
	assert.Equal(t, 1, lister.calls["share/a/b"])
}

func TestTraverser_AuthenticationAborts(t *testing.T) {
	lister, root := sampleTree()
	lister.sticky["share/a"] = &types.AuthenticationError{Server: "srv", Reason: "password expired"}

	err := NewTraverser(lister, noDelay()).Walk(context.Background(), root, func(types.ItemDescriptor) error {
		return nil
	})

	var authErr *types.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, lister.calls["share/a/B"])
}

func TestTraverser_CallbackErrorStops(t *testing.T) {
	lister, root := sampleTree()
	stop := errors.New("sink full")

	var seen []string
	err := NewTraverser(lister, noDelay()).Walk(context.Background(), root, func(item types.ItemDescriptor) error {
		seen = append(seen, item.Path)
		if item.Path == "share/a/b" {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"share/a", "share/a/b"}, seen)
	assert.Zero(t, lister.calls["share/a/b"], "no listing after the callback failed")
}

func TestTraverser_ContextCancelled(t *testing.T) {
	lister, root := sampleTree()
	ctx, cancel := context.WithCancel(context.Background())

	err := NewTraverser(lister, noDelay()).Walk(ctx, root, func(item types.ItemDescriptor) error {
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraverser_RuleAware(t *testing.T) {
	t.Run("double star includes the whole subtree", func(t *testing.T) {
		lister, root := sampleTree()
		tr := NewTraverser(lister, noDelay(), WithFilter(mustRules(t, "a/**")))

		paths := collect(t, tr, root)

		assert.Contains(t, paths, "share/a/b/c")
		assert.Contains(t, paths, "share/a/B")
		assert.Contains(t, paths, "share/a/b")
	})

	t.Run("single star includes one level", func(t *testing.T) {
		lister, root := sampleTree()
		tr := NewTraverser(lister, noDelay(), WithFilter(mustRules(t, "a/b/*")))

		paths := collect(t, tr, root)

		assert.Equal(t, []string{"share/a/b/c"}, paths)
		assert.Zero(t, lister.calls["share/a/B"], "a/B cannot prefix a/b/* and must not be listed")
		assert.Equal(t, 1, lister.calls["share/a/b"])
	})

	t.Run("unmatched rules are reported", func(t *testing.T) {
		lister, root := sampleTree()
		core, logs := observer.New(zap.WarnLevel)
		tr := NewTraverser(lister, noDelay(), WithLogger(zap.New(core)), WithFilter(mustRules(t, "a/b/*", "zzz/*")))

		collect(t, tr, root)

		entries := logs.FilterMessageSnippet("advanced rules matched no items").All()
		require.Len(t, entries, 1)
		assert.Equal(t, []any{"zzz/*"}, entries[0].ContextMap()["patterns"])
		assert.Zero(t, lister.calls["share/zzz"])
	})
}

func TestTraverser_Ignore(t *testing.T) {
	dir := t.TempDir()
	ignoreFile := filepath.Join(dir, ".sharecrawlignore")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("B/\n"), 0o644))
	ignore, err := gitignore.CompileIgnoreFile(ignoreFile)
	require.NoError(t, err)

	lister, root := sampleTree()
	paths := collect(t, NewTraverser(lister, noDelay(), WithIgnore(ignore)), root)

	assert.Equal(t, []string{"share/a", "share/a/b", "share/a/b/c"}, paths)
	assert.Zero(t, lister.calls["share/a/B"])
}
