// Package sharecrawl enumerates documents from SMB network drives and
// SharePoint Server site collections.
//
// # Basic Usage
//
// Load a configuration, open a syncer and drain it into a store:
//
//	cfg, err := config.Load("sharecrawl.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	syncer, err := sharecrawl.NewSyncer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer syncer.Close()
//
//	s, err := store.New(store.Config{Path: cfg.StorePath})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	stats, err := syncer.Sync(ctx, s)
//
// # Document Level Security
//
// With cfg.DLS set, every document carries its access control list and
// SyncAccess stores one access-control document per identity:
//
//	n, err := syncer.SyncAccess(ctx, s)
package sharecrawl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/sharecrawl/pkg/access"
	"github.com/praetorian-inc/sharecrawl/pkg/config"
	"github.com/praetorian-inc/sharecrawl/pkg/connector"
	"github.com/praetorian-inc/sharecrawl/pkg/content"
	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/sharepoint"
	"github.com/praetorian-inc/sharecrawl/pkg/source"
	"github.com/praetorian-inc/sharecrawl/pkg/store"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Re-export commonly used types for convenience.
type (
	// Document is one enumerated file, folder, site, list or list item.
	Document = types.Document

	// Content is the attachment or extracted text of a file.
	Content = types.Content

	// AccessDocument describes the access tags of one identity.
	AccessDocument = types.AccessDocument

	// Rule is one advanced sync rule.
	Rule = types.Rule
)

// Source is a connector that can check its connection.
type Source interface {
	connector.Connector
	Ping(ctx context.Context) error
}

// Syncer drains the source selected by a configuration into a store.
type Syncer struct {
	source  Source
	release func()
	config  *syncerConfig
}

// syncerConfig holds syncer configuration.
type syncerConfig struct {
	logger      *zap.Logger
	workers     int
	withContent bool
}

// Option configures a Syncer.
type Option func(*syncerConfig)

// WithLogger sets the logger passed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(c *syncerConfig) {
		c.logger = logger
	}
}

// WithWorkers overrides the number of concurrent content workers.
func WithWorkers(workers int) Option {
	return func(c *syncerConfig) {
		c.workers = workers
	}
}

// WithoutContent stores documents without fetching their content.
func WithoutContent() Option {
	return func(c *syncerConfig) {
		c.withContent = false
	}
}

// SyncStats counts the outcome of a sync pass.
type SyncStats struct {
	Documents int
	Contents  int64
	Skipped   int64
	Deleted   int

	// Incomplete lists the directories, pages and lists the pass skipped
	// after their listing failed.
	Incomplete []string

	// Seen holds the ID of every emitted document.
	Seen map[string]bool
}

// NewSyncer builds the source cfg selects. cfg must be valid. Nothing is
// contacted except the text extraction service, which is probed once.
func NewSyncer(ctx context.Context, cfg *config.Config, opts ...Option) (*Syncer, error) {
	c := &syncerConfig{
		logger:      zap.NewNop(),
		workers:     cfg.Workers,
		withContent: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	connOpts := []connector.Option{
		connector.WithLogger(c.logger),
		connector.WithPolicy(cfg.RetryPolicy()),
		connector.WithContentOptions(contentOptions(ctx, cfg, c.logger)...),
	}

	if cfg.Source == config.SourceSharePoint {
		sp, err := newSharePoint(cfg, connOpts)
		if err != nil {
			return nil, err
		}
		return &Syncer{source: sp, release: func() {}, config: c}, nil
	}

	nd, release, err := newNetworkDrive(cfg, connOpts)
	if err != nil {
		return nil, err
	}
	return &Syncer{source: nd, release: release, config: c}, nil
}

// newSyncerFromSource wraps an already built source.
func newSyncerFromSource(src Source, opts ...Option) *Syncer {
	c := &syncerConfig{logger: zap.NewNop(), workers: 1, withContent: true}
	for _, opt := range opts {
		opt(c)
	}
	return &Syncer{source: src, release: func() {}, config: c}
}

// Source returns the underlying connector.
func (s *Syncer) Source() Source {
	return s.source
}

// Ping checks the connection to the source.
func (s *Syncer) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

// Sync stores every document of the source in st. Documents are stored in
// emission order; content fetches run on the configured number of worker
// goroutines, and enumeration blocks while all of them are busy.
func (s *Syncer) Sync(ctx context.Context, st store.Store) (*SyncStats, error) {
	return drain(ctx, s.source, st, s.config.workers, s.config.withContent, s.config.logger)
}

// FullSync runs Sync and then deletes the stored documents the pass did
// not emit. Nothing is deleted when the pass skipped part of the source.
func (s *Syncer) FullSync(ctx context.Context, st store.Store) (*SyncStats, error) {
	stats, err := s.Sync(ctx, st)
	if err != nil {
		return stats, err
	}
	if len(stats.Incomplete) > 0 {
		s.config.logger.Warn("pass skipped part of the source, not deleting unseen documents",
			zap.Strings("skipped", stats.Incomplete))
		return stats, nil
	}
	if stats.Deleted, err = store.Prune(st, stats.Seen); err != nil {
		return stats, fmt.Errorf("pruning store: %w", err)
	}
	s.config.logger.Info("deleted documents not seen in this pass", zap.Int("deleted", stats.Deleted))
	return stats, nil
}

// SyncAccess stores every access-control document of the source in st and
// returns how many were stored.
func (s *Syncer) SyncAccess(ctx context.Context, st store.Store) (int, error) {
	n := 0
	err := s.source.AccessDocs(ctx, func(doc types.AccessDocument) error {
		if err := st.PutAccessDocument(doc); err != nil {
			return fmt.Errorf("storing access document %s: %w", doc.ID, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	s.config.logger.Info("access sync complete", zap.Int("identities", n))
	return n, nil
}

// Close releases the directory connection, if any.
func (s *Syncer) Close() {
	s.release()
}

func drain(ctx context.Context, src enum.Source, st store.Store, workers int, withContent bool, logger *zap.Logger) (*SyncStats, error) {
	if workers < 1 {
		workers = 1
	}

	stats := &SyncStats{Seen: make(map[string]bool)}
	var contents, skipped atomic.Int64
	skips := &enum.Skips{}

	g, gctx := errgroup.WithContext(enum.WithSkips(ctx, skips))
	g.SetLimit(workers)

	err := src.Docs(gctx, func(e types.Emission) error {
		if err := st.PutDocument(e.Document); err != nil {
			return fmt.Errorf("storing document %s: %w", e.Document.Path, err)
		}
		stats.Documents++
		stats.Seen[e.Document.ID] = true

		if e.Content == nil || !withContent {
			return nil
		}
		fetch := e.Content
		path := e.Document.Path
		g.Go(func() error {
			c, err := fetch(gctx, true)
			if err != nil {
				return err
			}
			if c == nil {
				skipped.Add(1)
				return nil
			}
			if err := st.PutContent(c); err != nil {
				return fmt.Errorf("storing content of %s: %w", path, err)
			}
			contents.Add(1)
			return nil
		})
		return nil
	})

	// A worker failure cancels gctx, so the enumeration usually ends with
	// context.Canceled; the worker's error is the cause.
	werr := g.Wait()
	switch {
	case werr != nil && (err == nil || (ctx.Err() == nil && errors.Is(err, context.Canceled))):
		err = werr
	case err == nil:
		err = ctx.Err()
	}
	stats.Contents = contents.Load()
	stats.Skipped = skipped.Load()
	stats.Incomplete = skips.Paths()
	if err != nil {
		return stats, err
	}

	logger.Info("sync pass complete",
		zap.Int("documents", stats.Documents),
		zap.Int64("contents", stats.Contents),
		zap.Int64("skipped", stats.Skipped))
	return stats, nil
}

func contentOptions(ctx context.Context, cfg *config.Config, logger *zap.Logger) []content.Option {
	opts := []content.Option{
		content.WithMaxFileSize(cfg.Content.MaxFileSize),
		content.WithChunkSize(cfg.Content.ChunkSize),
		content.WithUnsupportedExtensions(cfg.Content.UnsupportedExtensions),
	}

	var extractor content.Extractor
	if cfg.TextExtraction.Enabled {
		extractor = content.Probe(ctx, cfg.TextExtraction.Host, nil, logger)
	}
	if extractor == nil && cfg.TextExtraction.Local {
		extractor = content.NewLocalExtractor()
	}
	if extractor != nil {
		opts = append(opts, content.WithExtractor(extractor))
	}
	return opts
}

func newSharePoint(cfg *config.Config, opts []connector.Option) (*connector.SharePoint, error) {
	sp := cfg.SharePoint
	client, err := sharepoint.NewClient(sharepoint.Config{
		HostURL:            sp.HostURL,
		Username:           sp.Username,
		Password:           sp.Password,
		Token:              sp.Token,
		InsecureSkipVerify: sp.InsecureSkipVerify,
		Timeout:            sp.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return connector.NewSharePoint(connector.SharePointConfig{
		Host:        client.Host(),
		Collections: sp.SiteCollections,
		DLS:         cfg.DLS,
		PageSize:    sp.PageSize,
	}, client, opts...)
}

func newNetworkDrive(cfg *config.Config, opts []connector.Option) (*connector.NetworkDrive, func(), error) {
	nd := cfg.NetworkDrive
	rules, err := cfg.Rules()
	if err != nil {
		return nil, nil, err
	}
	share := connector.NetworkDriveConfig{
		Server:           nd.Server,
		DrivePath:        nd.Path,
		DriveType:        connector.DriveType(nd.DriveType),
		IdentityMappings: nd.IdentityMappings,
		DLS:              cfg.DLS,
		Rules:            rules,
	}

	session, err := newSession(nd, share.SharePath())
	if err != nil {
		return nil, nil, err
	}

	if nd.IgnoreFile != "" {
		ignore, err := gitignore.CompileIgnoreFile(nd.IgnoreFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading ignore file %s: %w", nd.IgnoreFile, err)
		}
		opts = append(opts, connector.WithIgnore(ignore))
	}

	release := func() {}
	if cfg.DLS && share.DriveType == connector.DriveWindows {
		dir := access.NewLDAPDirectory(ldapConfig(nd))
		opts = append(opts, connector.WithDirectory(dir))
		release = dir.Close
	}

	d, err := connector.NewNetworkDrive(share, session, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return d, release, nil
}

func newSession(nd config.NetworkDriveConfig, share string) (connector.Session, error) {
	if nd.Transport == config.TransportWebDAV {
		return source.NewWebDAVSession(source.WebDAVConfig{
			BaseURL:  nd.WebDAVURL,
			BasePath: nd.WebDAVPath,
			Username: nd.Username,
			Password: nd.Password,
			Share:    share,
			Timeout:  nd.Timeout,
		}), nil
	}

	var opts []source.MountOption
	if nd.IncludeHidden {
		opts = append(opts, source.WithHidden())
	}
	if nd.FollowSymlinks {
		opts = append(opts, source.WithSymlinks())
	}
	if nd.CIFSACL {
		opts = append(opts, source.WithCIFSACL())
	}
	return source.NewMountSession(nd.MountRoot, share, opts...)
}

// ldapConfig defaults the directory to the share server and credentials.
func ldapConfig(nd config.NetworkDriveConfig) access.LDAPConfig {
	cfg := access.LDAPConfig{
		URL:                nd.LDAP.URL,
		BaseDN:             nd.LDAP.BaseDN,
		Domain:             nd.LDAP.Domain,
		Username:           nd.LDAP.Username,
		Password:           nd.LDAP.Password,
		InsecureSkipVerify: nd.LDAP.InsecureSkipVerify,
	}
	if cfg.URL == "" {
		cfg.URL = "ldap://" + nd.Server + ":389"
	}
	if cfg.Username == "" {
		cfg.Username = nd.Username
		cfg.Password = nd.Password
	}
	return cfg
}
