package rule

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Filter decides which paths of a share are enumerated. A nil or empty
// Filter includes everything.
type Filter struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	raw      string
	glob     string
	segments []string
	// loose patterns contain alternations that may span separators, so
	// segment-wise pruning cannot be applied to them.
	loose   bool
	matched atomic.Bool
}

// NewFilter compiles validated rules. Backslashes are treated as path
// separators.
func NewFilter(rules []types.Rule) (*Filter, error) {
	f := &Filter{patterns: make([]compiledPattern, len(rules))}
	for i, r := range rules {
		glob := normalizePattern(r.Pattern)
		if glob == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("rule %d: invalid glob pattern %q", i, r.Pattern)
		}
		f.patterns[i].raw = r.Pattern
		f.patterns[i].glob = glob
		f.patterns[i].segments = strings.Split(glob, "/")
		f.patterns[i].loose = strings.Contains(glob, "{")
	}
	return f, nil
}

// Empty reports whether the filter restricts nothing.
func (f *Filter) Empty() bool {
	return f == nil || len(f.patterns) == 0
}

// Match reports whether path (relative to the share root) matches at least
// one pattern. Matching is case-preserving; the first match wins.
func (f *Filter) Match(path string) bool {
	if f.Empty() {
		return true
	}
	p := NormalizePath(path)
	for i := range f.patterns {
		ok, err := doublestar.Match(f.patterns[i].glob, p)
		if err == nil && ok {
			f.patterns[i].matched.Store(true)
			return true
		}
	}
	return false
}

// CanDescend reports whether some descendant of dir could match a pattern,
// i.e. whether listing dir is worth a remote call.
func (f *Filter) CanDescend(dir string) bool {
	if f.Empty() {
		return true
	}
	d := NormalizePath(dir)
	if d == "" {
		return true
	}
	segments := strings.Split(d, "/")
	for i := range f.patterns {
		if f.patterns[i].loose || prefixConsistent(f.patterns[i].segments, segments) {
			return true
		}
	}
	return false
}

// Unmatched returns the patterns that have not matched any path so far.
// Patterns shadowed by an earlier pattern also count as unmatched.
func (f *Filter) Unmatched() []string {
	if f.Empty() {
		return nil
	}
	var out []string
	for i := range f.patterns {
		if !f.patterns[i].matched.Load() {
			out = append(out, f.patterns[i].raw)
		}
	}
	return out
}

// Patterns returns the normalized patterns in rule order.
func (f *Filter) Patterns() []string {
	if f.Empty() {
		return nil
	}
	out := make([]string, 0, len(f.patterns))
	for i := range f.patterns {
		out = append(out, f.patterns[i].glob)
	}
	return out
}

// prefixConsistent reports whether the directory segments can be the
// leading segments of a path matched by the pattern segments.
func prefixConsistent(pattern, dir []string) bool {
	for i, seg := range dir {
		if i >= len(pattern) {
			return false
		}
		if pattern[i] == "**" {
			return true
		}
		ok, err := doublestar.Match(pattern[i], seg)
		if err != nil || !ok {
			return false
		}
	}
	// The directory consumed the whole pattern: it may match itself, but
	// nothing beneath it can.
	return len(dir) < len(pattern)
}

// NormalizePath converts a native path into the '/'-separated form used for
// matching.
func NormalizePath(path string) string {
	return strings.Trim(strings.ReplaceAll(path, `\`, "/"), "/")
}

func normalizePattern(pattern string) string {
	return strings.ReplaceAll(pattern, `\`, "/")
}
