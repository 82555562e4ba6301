package sharepoint

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Crawler enumerates the contents of site collections: each site, its
// lists and their items, then its subsites.
type Crawler struct {
	caller   enum.Caller
	host     string
	pager    *enum.Paginator
	pageSize int
	policy   retry.Policy
	logger   *zap.Logger
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CrawlerOption {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPolicy sets the retry policy for every call.
func WithPolicy(p retry.Policy) CrawlerOption {
	return func(c *Crawler) {
		c.policy = p
	}
}

// WithPageSize sets the $top of query-paged collections.
func WithPageSize(n int) CrawlerOption {
	return func(c *Crawler) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewCrawler creates a Crawler. host is the farm root used to build
// absolute item URLs.
func NewCrawler(caller enum.Caller, host string, opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		caller:   caller,
		host:     host,
		pageSize: enum.DefaultPageSize,
		policy:   retry.DefaultPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pager = enum.NewPaginator(caller, enum.WithLogger(c.logger), enum.WithPolicy(c.policy))
	return c
}

// Walk emits every item of the collection at the server-relative path
// collection (e.g. "/sites/hr") in discovery order. A list whose items
// cannot be paged is logged and skipped; failing to read the collection
// root is returned.
func (c *Crawler) Walk(ctx context.Context, collection string, callback func(types.ItemDescriptor) error) error {
	root, err := retry.Do(ctx, c.policy, "site", collection, func(ctx context.Context) (enum.Payload, error) {
		return c.caller.Call(ctx, collection+"/_api/web", url.Values{"$expand": {"Author"}})
	})
	if err != nil {
		return err
	}
	return c.walkSite(ctx, Record(root), callback)
}

func (c *Crawler) walkSite(ctx context.Context, rec Record, callback func(types.ItemDescriptor) error) error {
	site, ok := SiteItem(c.host, rec)
	if !ok {
		c.logger.Debug("skipping site without id")
		return nil
	}
	if err := callback(site); err != nil {
		return err
	}
	rel := site.Path

	listParams := url.Values{
		"$expand": {"RootFolder"},
		"$filter": {"Hidden eq false"},
	}
	err := c.pager.QueryPages(ctx, rel+"/_api/web/lists", listParams, c.pageSize, func(p enum.Payload) error {
		l, ok := ParseList(rel, Record(p))
		if !ok {
			return nil
		}
		if err := callback(ListItem(c.host, l, Record(p))); err != nil {
			return err
		}
		return c.walkList(ctx, l, callback)
	})
	if err != nil {
		return err
	}

	return c.pager.QueryPages(ctx, rel+"/_api/web/webs", url.Values{"$expand": {"Author"}}, c.pageSize, func(p enum.Payload) error {
		return c.walkSite(ctx, Record(p), callback)
	})
}

func (c *Crawler) walkList(ctx context.Context, l List, callback func(types.ItemDescriptor) error) error {
	endpoint := l.Site + "/_api/web/lists(guid'" + quote(l.ID) + "')/items"
	params := url.Values{"$expand": {"AttachmentFiles,Author,Editor"}}
	if l.Library {
		params.Set("$expand", "File,Folder,Author,Editor")
	}

	err := c.pager.NextLinkPages(ctx, endpoint, params, func(p enum.Payload) error {
		rec := Record(p)
		if l.Library {
			item, ok := DriveItem(c.host, l, rec)
			if !ok {
				return nil
			}
			return callback(item)
		}

		item, ok := ListEntry(c.host, l, rec)
		if !ok {
			return nil
		}
		if err := callback(item); err != nil {
			return err
		}
		for _, attachment := range Attachments(c.host, item, rec) {
			if err := callback(attachment); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var fatal *types.FatalError
	var status *types.StatusError
	if errors.As(err, &fatal) || errors.As(err, &status) {
		enum.NoteSkip(ctx, l.RootURL)
		c.logger.Warn("skipping list",
			zap.String("site", l.Site),
			zap.String("list", l.Title),
			zap.Error(err))
		return nil
	}
	return err
}
