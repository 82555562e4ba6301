package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// WebDAVConfig holds the settings of a share exported over WebDAV.
type WebDAVConfig struct {
	BaseURL  string
	BasePath string
	Username string
	Password string
	// Share is the UNC prefix of reported paths.
	Share              string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// WebDAVSession reads a share through a WebDAV endpoint. It has no access
// to native permissions.
type WebDAVSession struct {
	baseURL  string
	basePath string
	share    string
	client   *gowebdav.Client
}

// NewWebDAVSession creates a session for cfg. No request is made until
// Connect or the first listing.
func NewWebDAVSession(cfg WebDAVConfig) *WebDAVSession {
	client := gowebdav.NewClient(cfg.BaseURL, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.SetTransport(transport)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	basePath := "/" + strings.Trim(cfg.BasePath, "/")
	return &WebDAVSession{
		baseURL:  cfg.BaseURL,
		basePath: basePath,
		share:    strings.TrimRight(cfg.Share, `\`),
		client:   client,
	}
}

// Connect checks the endpoint and the credentials.
func (s *WebDAVSession) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Connect(); err != nil {
		if gowebdav.IsErrCode(err, http.StatusUnauthorized) || gowebdav.IsErrCode(err, http.StatusForbidden) {
			return &types.AuthenticationError{Server: s.baseURL, Reason: "credentials rejected", Err: err}
		}
		return s.wrapError("connect", s.share, err)
	}
	return nil
}

// Root returns the descriptor of the share root.
func (s *WebDAVSession) Root() types.ItemDescriptor {
	return types.ItemDescriptor{
		ID:    types.ComputeItemID(s.share).Hex(),
		Path:  s.share,
		Title: s.share[strings.LastIndex(s.share, `\`)+1:],
		Kind:  types.KindFolder,
	}
}

// ListChildren lists dir.
func (s *WebDAVSession) ListChildren(ctx context.Context, dir types.ItemDescriptor) ([]types.ItemDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := s.client.ReadDir(s.remotePath(dir.Path))
	if err != nil {
		return nil, s.wrapError("list", dir.Path, err)
	}

	items := make([]types.ItemDescriptor, 0, len(infos))
	for _, info := range infos {
		p := dir.Path + `\` + info.Name()
		item := types.ItemDescriptor{
			ID:         types.ComputeItemID(p).Hex(),
			Path:       p,
			Title:      info.Name(),
			Kind:       types.KindFile,
			Size:       info.Size(),
			CreatedAt:  info.ModTime().UTC(),
			ModifiedAt: info.ModTime().UTC(),
		}
		if info.IsDir() {
			item.Kind = types.KindFolder
			item.Size = 0
		}
		if typed, ok := info.(interface{ ContentType() string }); ok && typed.ContentType() != "" {
			item.Fields = map[string]any{"content_type": typed.ContentType()}
		}
		items = append(items, item)
	}
	return items, nil
}

// Open streams the file behind item.
func (s *WebDAVSession) Open(ctx context.Context, item types.ItemDescriptor) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := s.client.ReadStream(s.remotePath(item.Path))
	if err != nil {
		return nil, s.wrapError("open", item.Path, err)
	}
	return rc, nil
}

// ReadPermissions always returns types.ErrUnsupported.
func (s *WebDAVSession) ReadPermissions(context.Context, types.ItemDescriptor) ([]types.PermissionEntry, error) {
	return nil, types.ErrUnsupported
}

// remotePath maps a UNC path under the share onto the WebDAV tree.
func (s *WebDAVSession) remotePath(p string) string {
	rel := strings.TrimPrefix(p, s.share)
	rel = strings.Trim(strings.ReplaceAll(rel, `\`, "/"), "/")
	return gowebdav.Join(s.basePath, rel)
}

var webdavStatuses = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

func (s *WebDAVSession) wrapError(op, p string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("%s %s: %w", op, p, fs.ErrNotExist)
	}
	for _, code := range webdavStatuses {
		if gowebdav.IsErrCode(err, code) {
			if code == http.StatusUnauthorized {
				return &types.AuthenticationError{Server: s.baseURL, Reason: "credentials rejected", Err: err}
			}
			return &types.RemoteError{Op: op, Path: p, Err: &types.StatusError{Code: code, URL: s.baseURL}, Transient: code == http.StatusTooManyRequests || code >= 500}
		}
	}
	return &types.RemoteError{Op: op, Path: p, Transient: true, Err: err}
}
