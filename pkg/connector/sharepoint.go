package connector

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/access"
	"github.com/praetorian-inc/sharecrawl/pkg/content"
	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/sharepoint"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// SharePointBackend is the REST transport of a SharePoint farm.
type SharePointBackend interface {
	enum.Caller
	content.Opener
}

// SharePointConfig describes the site collections to sync.
type SharePointConfig struct {
	// Host is the farm root, e.g. https://sp.corp.example.
	Host string
	// Collections are server-relative paths such as "sites/hr".
	Collections []string
	DLS         bool
	PageSize    int
}

// Validate checks cfg without contacting the farm.
func (cfg SharePointConfig) Validate() error {
	if cfg.Host == "" {
		return &types.ValidationError{Field: "sharepoint.host_url", Message: "host URL is required"}
	}
	if len(cfg.Collections) == 0 {
		return &types.ValidationError{Field: "sharepoint.site_collections", Message: "at least one site collection is required"}
	}
	for _, c := range cfg.Collections {
		if strings.Trim(c, "/") == "" {
			return &types.ValidationError{Field: "sharepoint.site_collections", Message: "site collection path is empty"}
		}
	}
	return nil
}

// SharePoint emits the sites, lists, list items and documents of a set of
// site collections.
type SharePoint struct {
	cfg     SharePointConfig
	backend SharePointBackend
	opts    options
}

// NewSharePoint validates cfg and creates a connector over backend.
func NewSharePoint(cfg SharePointConfig, backend SharePointBackend, opts ...Option) (*SharePoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &SharePoint{cfg: cfg, backend: backend, opts: newOptions(opts)}, nil
}

func (s *SharePoint) crawler() *sharepoint.Crawler {
	return sharepoint.NewCrawler(s.backend, s.cfg.Host,
		sharepoint.WithLogger(s.opts.logger),
		sharepoint.WithPolicy(s.opts.policy),
		sharepoint.WithPageSize(s.cfg.PageSize))
}

// collectionPath returns the server-relative form "/sites/hr".
func collectionPath(c string) string {
	return "/" + strings.Trim(c, "/")
}

// Docs crawls every collection in order. A document reachable from two
// collections is emitted once.
func (s *SharePoint) Docs(ctx context.Context, callback func(types.Emission) error) error {
	crawler := s.crawler()
	fetcher := s.opts.fetcher(s.backend)

	var resolver *access.Resolver
	if s.cfg.DLS {
		resolver = access.NewResolver(sharepoint.NewPermissions(s.backend),
			access.PrefixExpander{Prefix: sharepoint.UserPrefix},
			access.WithLogger(s.opts.logger),
			access.WithPolicy(s.opts.policy))
	}

	sources := make([]enum.Source, 0, len(s.cfg.Collections))
	for _, c := range s.cfg.Collections {
		sources = append(sources, &collectionSource{
			path:     collectionPath(c),
			crawler:  crawler,
			resolver: resolver,
			fetcher:  fetcher,
			logger:   s.opts.logger,
		})
	}
	return enum.NewCombined(sources...).Docs(ctx, callback)
}

// AccessDocs yields one document per distinct site user across all
// collections. Nothing is yielded when document level security is off.
func (s *SharePoint) AccessDocs(ctx context.Context, callback func(types.AccessDocument) error) error {
	if !s.cfg.DLS {
		s.opts.logger.Info("document level security disabled, no access control documents")
		return nil
	}

	crawler := s.crawler()
	now := s.opts.now()
	seen := make(map[string]bool)
	for _, c := range s.cfg.Collections {
		err := crawler.SiteUsers(ctx, collectionPath(c), func(rec sharepoint.Record) error {
			doc, ok := sharepoint.UserAccessDocument(rec, now)
			if !ok || seen[doc.ID] {
				return nil
			}
			seen[doc.ID] = true
			return callback(doc)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Ping checks that every collection answers.
func (s *SharePoint) Ping(ctx context.Context) error {
	for _, c := range s.cfg.Collections {
		if _, err := s.backend.Call(ctx, collectionPath(c)+"/_api/web", nil); err != nil {
			return err
		}
	}
	return nil
}

type collectionSource struct {
	path     string
	crawler  *sharepoint.Crawler
	resolver *access.Resolver
	fetcher  *content.Fetcher
	logger   *zap.Logger
}

func (c *collectionSource) Docs(ctx context.Context, callback func(types.Emission) error) error {
	c.logger.Info("crawling site collection", zap.String("collection", c.path))
	return c.crawler.Walk(ctx, c.path, func(item types.ItemDescriptor) error {
		return emit(ctx, item, c.resolver, c.fetcher, callback)
	})
}
