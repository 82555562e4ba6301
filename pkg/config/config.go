// Package config loads the YAML configuration of a sync.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/sharecrawl/pkg/content"
	"github.com/praetorian-inc/sharecrawl/pkg/retry"
	"github.com/praetorian-inc/sharecrawl/pkg/rule"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Source names.
const (
	SourceNetworkDrive = "network_drive"
	SourceSharePoint   = "sharepoint_server"
)

// Share transports.
const (
	TransportMount  = "mount"
	TransportWebDAV = "webdav"
)

// LDAPConfig locates the directory of a Windows share.
type LDAPConfig struct {
	URL                string `yaml:"url"`
	BaseDN             string `yaml:"base_dn"`
	Domain             string `yaml:"domain"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// NetworkDriveConfig describes one share and how to reach it.
type NetworkDriveConfig struct {
	Server           string `yaml:"server"`
	Path             string `yaml:"path"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	DriveType        string `yaml:"drive_type"`
	IdentityMappings string `yaml:"identity_mappings"`

	// Transport is "mount" (the share is mounted at MountRoot) or
	// "webdav" (the share is exported at WebDAVURL).
	Transport      string        `yaml:"transport"`
	MountRoot      string        `yaml:"mount_root"`
	IncludeHidden  bool          `yaml:"include_hidden"`
	FollowSymlinks bool          `yaml:"follow_symlinks"`
	CIFSACL        bool          `yaml:"cifs_acl"`
	WebDAVURL      string        `yaml:"webdav_url"`
	WebDAVPath     string        `yaml:"webdav_path"`
	Timeout        time.Duration `yaml:"timeout"`

	// IgnoreFile holds gitignore-style exclusions.
	IgnoreFile string     `yaml:"ignore_file"`
	LDAP       LDAPConfig `yaml:"ldap"`
}

// SharePointConfig describes a SharePoint Server farm.
type SharePointConfig struct {
	HostURL            string        `yaml:"host_url"`
	SiteCollections    []string      `yaml:"site_collections"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	Token              string        `yaml:"token"`
	PageSize           int           `yaml:"page_size"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// TextExtractionConfig selects how file content is turned into text.
type TextExtractionConfig struct {
	// Enabled uses the extraction service at Host when it answers.
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	// Local extracts in process when no service is used.
	Local bool `yaml:"local"`
}

// ContentConfig bounds content downloads.
type ContentConfig struct {
	MaxFileSize           int64    `yaml:"max_file_size"`
	ChunkSize             int      `yaml:"chunk_size"`
	UnsupportedExtensions []string `yaml:"unsupported_extensions"`
}

// RetryConfig maps onto retry.Policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
	Strategy    string        `yaml:"strategy"`
}

// Config is the whole configuration file.
type Config struct {
	Source         string               `yaml:"source"`
	NetworkDrive   NetworkDriveConfig   `yaml:"network_drive"`
	SharePoint     SharePointConfig     `yaml:"sharepoint"`
	DLS            bool                 `yaml:"dls"`
	TextExtraction TextExtractionConfig `yaml:"text_extraction"`
	Content        ContentConfig        `yaml:"content"`
	Retry          RetryConfig          `yaml:"retry"`
	Workers        int                  `yaml:"workers"`
	StorePath      string               `yaml:"store_path"`

	// AdvancedRules is the raw rule-set, validated by pkg/rule.
	AdvancedRules any `yaml:"advanced_rules"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceNetworkDrive,
		NetworkDrive: NetworkDriveConfig{
			DriveType: "windows",
			Transport: TransportMount,
			Timeout:   30 * time.Second,
		},
		SharePoint: SharePointConfig{
			Timeout: 30 * time.Second,
		},
		Content: ContentConfig{
			MaxFileSize:           content.DefaultMaxFileSize,
			ChunkSize:             content.DefaultChunkSize,
			UnsupportedExtensions: slices.Clone(content.DefaultUnsupportedExtensions),
		},
		Retry: RetryConfig{
			MaxAttempts: retry.DefaultMaxAttempts,
			Interval:    retry.DefaultInterval,
			Strategy:    string(retry.Exponential),
		},
		Workers:   4,
		StorePath: "sharecrawl.db",
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration without contacting any server.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceNetworkDrive:
		if err := c.NetworkDrive.validate(); err != nil {
			return err
		}
	case SourceSharePoint:
		if c.SharePoint.HostURL == "" {
			return invalid("sharepoint.host_url", "host URL is required")
		}
		if len(c.SharePoint.SiteCollections) == 0 {
			return invalid("sharepoint.site_collections", "at least one site collection is required")
		}
	default:
		return invalid("source", fmt.Sprintf("unknown source %q", c.Source))
	}

	if c.TextExtraction.Enabled && c.TextExtraction.Host == "" {
		return invalid("text_extraction.host", "host is required when text extraction is enabled")
	}
	if c.Content.MaxFileSize <= 0 {
		return invalid("content.max_file_size", "must be positive")
	}
	if c.Content.ChunkSize <= 0 {
		return invalid("content.chunk_size", "must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return invalid("retry.max_attempts", "must be at least 1")
	}
	switch retry.Strategy(c.Retry.Strategy) {
	case retry.Linear, retry.Exponential:
	default:
		return invalid("retry.strategy", fmt.Sprintf("unknown strategy %q", c.Retry.Strategy))
	}

	if c.Workers < 1 {
		return invalid("workers", "must be at least 1")
	}

	_, err := c.Rules()
	return err
}

func (n NetworkDriveConfig) validate() error {
	if n.Server == "" {
		return invalid("network_drive.server", "server is required")
	}
	if strings.HasPrefix(n.Path, "/") || strings.HasPrefix(n.Path, `\`) {
		return invalid("network_drive.path", fmt.Sprintf("%q must not start with a path separator", n.Path))
	}
	switch n.DriveType {
	case "windows", "linux":
	default:
		return invalid("network_drive.drive_type", fmt.Sprintf("unknown drive type %q", n.DriveType))
	}
	switch n.Transport {
	case TransportMount:
		if n.MountRoot == "" {
			return invalid("network_drive.mount_root", "mount root is required for the mount transport")
		}
	case TransportWebDAV:
		if n.WebDAVURL == "" {
			return invalid("network_drive.webdav_url", "URL is required for the webdav transport")
		}
	default:
		return invalid("network_drive.transport", fmt.Sprintf("unknown transport %q", n.Transport))
	}
	return nil
}

// Rules validates and returns the advanced rules.
func (c *Config) Rules() ([]types.Rule, error) {
	result := rule.Validate(c.AdvancedRules)
	if err := result.Err(); err != nil {
		return nil, err
	}
	return result.Rules, nil
}

// RetryPolicy returns the retry policy of the configuration.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Interval:    c.Retry.Interval,
		Strategy:    retry.Strategy(c.Retry.Strategy),
	}
}

func invalid(field, message string) error {
	return &types.ValidationError{Field: field, Message: message}
}
