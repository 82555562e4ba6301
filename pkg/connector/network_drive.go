package connector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/praetorian-inc/sharecrawl/pkg/access"
	"github.com/praetorian-inc/sharecrawl/pkg/enum"
	"github.com/praetorian-inc/sharecrawl/pkg/rule"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// DriveType is the operating system serving a network drive. It selects
// where identities come from when document level security is on.
type DriveType string

const (
	DriveWindows DriveType = "windows"
	DriveLinux   DriveType = "linux"
)

// NetworkDriveConfig describes one share.
type NetworkDriveConfig struct {
	Server    string
	DrivePath string
	DriveType DriveType
	// IdentityMappings is the path of a "name;user_sid;group_sids" file,
	// required for Linux shares with document level security.
	IdentityMappings string
	DLS              bool
	Rules            []types.Rule
}

// Validate checks cfg without contacting the server.
func (cfg NetworkDriveConfig) Validate() error {
	if cfg.Server == "" {
		return &types.ValidationError{Field: "network_drive.server", Message: "server is required"}
	}
	if strings.HasPrefix(cfg.DrivePath, "/") || strings.HasPrefix(cfg.DrivePath, `\`) {
		return &types.ValidationError{Field: "network_drive.path", Message: fmt.Sprintf("%q must not start with a path separator", cfg.DrivePath)}
	}
	switch cfg.DriveType {
	case DriveWindows, DriveLinux:
	default:
		return &types.ValidationError{Field: "network_drive.drive_type", Message: fmt.Sprintf("unknown drive type %q", cfg.DriveType)}
	}
	return rule.Validate(cfg.Rules).Err()
}

// SharePath returns the UNC path of the configured drive path,
// e.g. \\files01\finance\reports.
func (cfg NetworkDriveConfig) SharePath() string {
	p := `\\` + cfg.Server
	if rel := strings.Trim(strings.ReplaceAll(cfg.DrivePath, "/", `\`), `\`); rel != "" {
		p += `\` + rel
	}
	return p
}

// NetworkDrive emits the files and folders of one share.
type NetworkDrive struct {
	cfg     NetworkDriveConfig
	session Session
	opts    options
}

// NewNetworkDrive validates cfg and creates a connector reading through
// session.
func NewNetworkDrive(cfg NetworkDriveConfig, session Session, opts ...Option) (*NetworkDrive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NetworkDrive{cfg: cfg, session: session, opts: newOptions(opts)}, nil
}

// Ping checks that the share root can be listed.
func (d *NetworkDrive) Ping(ctx context.Context) error {
	if c, ok := d.session.(interface{ Connect(context.Context) error }); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	if _, err := d.session.ListChildren(ctx, d.session.Root()); err != nil {
		return fmt.Errorf("listing share root %s: %w", d.session.Root().Path, err)
	}
	return nil
}

// Docs walks the share and calls callback for every accepted item in
// pre-order. When advanced rules are set, only matching items are emitted
// and directories no rule can reach are not listed.
func (d *NetworkDrive) Docs(ctx context.Context, callback func(types.Emission) error) error {
	filter, err := rule.NewFilter(d.cfg.Rules)
	if err != nil {
		return &types.ValidationError{Field: "advanced_rules", Message: err.Error()}
	}

	var resolver *access.Resolver
	if d.cfg.DLS {
		expander, err := d.expander(ctx)
		if err != nil {
			return err
		}
		resolver = access.NewResolver(d.session, expander,
			access.WithLogger(d.opts.logger),
			access.WithPolicy(d.opts.policy))
	}

	traverserOpts := []enum.Option{
		enum.WithLogger(d.opts.logger),
		enum.WithPolicy(d.opts.policy),
		enum.WithFilter(filter),
	}
	if d.opts.ignore != nil {
		traverserOpts = append(traverserOpts, enum.WithIgnore(d.opts.ignore))
	}
	if !filter.Empty() {
		d.opts.logger.Info("applying advanced rules", zap.Strings("patterns", filter.Patterns()))
	}

	fetcher := d.opts.fetcher(d.session)
	return enum.NewTraverser(d.session, traverserOpts...).Walk(ctx, d.session.Root(), func(item types.ItemDescriptor) error {
		return emit(ctx, item, resolver, fetcher, callback)
	})
}

// AccessDocs yields one access-control document per identity: directory
// users for Windows shares, mapping rows for Linux shares. Nothing is
// yielded when document level security is off.
func (d *NetworkDrive) AccessDocs(ctx context.Context, callback func(types.AccessDocument) error) error {
	if !d.cfg.DLS {
		d.opts.logger.Info("document level security disabled, no access control documents")
		return nil
	}

	var docs []types.AccessDocument
	now := d.opts.now()
	switch d.cfg.DriveType {
	case DriveLinux:
		table, err := d.mappings()
		if err != nil {
			return err
		}
		docs = access.MappingAccessDocuments(table, now)
	default:
		dir, err := d.directory(ctx)
		if err != nil {
			return err
		}
		docs = access.DirectoryAccessDocuments(dir, now)
	}

	for _, doc := range docs {
		if err := callback(doc); err != nil {
			return err
		}
	}
	return nil
}

// expander builds the identity data of one cycle.
func (d *NetworkDrive) expander(ctx context.Context) (access.Expander, error) {
	if d.cfg.DriveType == DriveLinux {
		return d.mappings()
	}
	return d.directory(ctx)
}

func (d *NetworkDrive) mappings() (*access.MappingTable, error) {
	if d.cfg.IdentityMappings == "" {
		return nil, &types.ValidationError{
			Field:   "network_drive.identity_mappings",
			Message: "an identity mappings file is required for Linux shares with document level security",
		}
	}
	return access.LoadMappings(d.cfg.IdentityMappings)
}

func (d *NetworkDrive) directory(ctx context.Context) (*access.IdentityDirectory, error) {
	if d.opts.directory == nil {
		return nil, &types.ValidationError{
			Field:   "network_drive.directory",
			Message: "a directory source is required for Windows shares with document level security",
		}
	}
	dir, err := access.BuildDirectory(ctx, d.opts.directory, d.opts.logger)
	if err != nil {
		return nil, fmt.Errorf("building identity directory: %w", err)
	}
	return dir, nil
}
