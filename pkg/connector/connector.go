// Package connector turns a share or a SharePoint farm into a sequence of
// documents: it walks the store, applies advanced rules, resolves access
// control and attaches deferred content fetches.
package connector

import (
	"context"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/access"
	"github.com/praetorian-inc/sharecrawl/pkg/content"
	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Session is the transport of one share: it lists directories, opens files
// and reads native permissions.
type Session interface {
	enum.Lister
	content.Opener
	access.PermissionReader
	Root() types.ItemDescriptor
}

// Connector produces the documents of one data source and, separately, its
// access-control documents.
type Connector interface {
	enum.Source
	AccessDocs(ctx context.Context, callback func(types.AccessDocument) error) error
}

// Option configures a connector.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	policy      retry.Policy
	contentOpts []content.Option
	directory   access.DirectorySource
	ignore      *gitignore.GitIgnore
	now         func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger passed down to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolicy sets the retry policy of every remote call.
func WithPolicy(p retry.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithContentOptions configures the content fetcher (size ceiling,
// unsupported extensions, extractor).
func WithContentOptions(opts ...content.Option) Option {
	return func(o *options) {
		o.contentOpts = append(o.contentOpts, opts...)
	}
}

// WithDirectory sets the identity source of Windows shares.
func WithDirectory(src access.DirectorySource) Option {
	return func(o *options) {
		o.directory = src
	}
}

// WithIgnore excludes paths matching gitignore-style patterns.
func WithIgnore(ignore *gitignore.GitIgnore) Option {
	return func(o *options) {
		o.ignore = ignore
	}
}

// WithClock overrides the time stamped on access-control documents.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o options) fetcher(opener content.Opener) *content.Fetcher {
	opts := []content.Option{content.WithLogger(o.logger), content.WithPolicy(o.policy)}
	f := content.NewFetcher(opener, append(opts, o.contentOpts...)...)
	o.logger.Debug("content fetcher ready", zap.Bool("extracting_text", f.Extracting()))
	return f
}

// emit formats item, decorates it with its ACL when resolver is set and
// attaches a content fetch to items that have content.
func emit(ctx context.Context, item types.ItemDescriptor, resolver *access.Resolver, fetcher *content.Fetcher, callback func(types.Emission) error) error {
	doc := types.FormatDocument(item)
	if resolver != nil {
		access.Decorate(&doc, resolver.Resolve(ctx, item))
	}
	e := types.Emission{Document: doc}
	if item.Kind.HasContent() {
		e.Content = fetcher.ContentFunc(doc)
	}
	return callback(e)
}
