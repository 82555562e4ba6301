// Package enum walks remote stores: directory trees through a Lister and
// paginated REST collections through a Caller. Both engines retry each call
// in place and never restart an enumeration.
package enum

import (
	"context"
	"net/url"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/rule"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Lister lists the immediate children of a directory on a remote store.
type Lister interface {
	ListChildren(ctx context.Context, dir types.ItemDescriptor) ([]types.ItemDescriptor, error)
}

// Payload is a decoded JSON object returned by a REST call.
type Payload map[string]any

// Caller performs one REST call. endpoint is either a path relative to the
// service root or an absolute next link returned by a previous page.
type Caller interface {
	Call(ctx context.Context, endpoint string, params url.Values) (Payload, error)
}

// Source produces emissions, e.g. a connector over one share or site.
type Source interface {
	Docs(ctx context.Context, callback func(types.Emission) error) error
}

// Option configures a Traverser or Paginator.
type Option func(*options)

type options struct {
	logger *zap.Logger
	policy retry.Policy
	filter *rule.Filter
	ignore *gitignore.GitIgnore
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		policy: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for skip and stop warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicy sets the retry policy applied to every remote call.
func WithPolicy(p retry.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFilter makes a Traverser rule-aware: only matching items are emitted
// and directories no pattern can reach are never listed.
func WithFilter(f *rule.Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithIgnore excludes items (and whole subtrees) matching gitignore-style
// patterns, evaluated against paths relative to the walk root.
func WithIgnore(ignore *gitignore.GitIgnore) Option {
	return func(o *options) {
		o.ignore = ignore
	}
}
