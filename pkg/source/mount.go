// Package source provides sessions over a network share: a share mounted
// into the local filesystem, or a share exported over WebDAV.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// MountSession reads a share mounted at a local directory (cifs, smbfs,
// or a mapped drive). Item paths are reported in UNC form under Share.
type MountSession struct {
	root           string
	share          string
	includeHidden  bool
	followSymlinks bool
	readACL        bool
}

// MountOption configures a MountSession.
type MountOption func(*MountSession)

// WithHidden includes dot-files and dot-directories.
func WithHidden() MountOption {
	return func(s *MountSession) {
		s.includeHidden = true
	}
}

// WithSymlinks follows symbolic links.
func WithSymlinks() MountOption {
	return func(s *MountSession) {
		s.followSymlinks = true
	}
}

// WithCIFSACL reads native permissions from the security descriptor the
// Linux cifs client exposes as an extended attribute.
func WithCIFSACL() MountOption {
	return func(s *MountSession) {
		s.readACL = true
	}
}

// NewMountSession creates a session over the directory root. share is the
// UNC prefix of reported paths, e.g. \\server\share\drive_path.
func NewMountSession(root, share string, opts ...MountOption) (*MountSession, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("mount root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount root %s is not a directory", root)
	}

	s := &MountSession{
		root:  filepath.Clean(root),
		share: strings.TrimRight(share, `\`),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the descriptor of the share root.
func (s *MountSession) Root() types.ItemDescriptor {
	return types.ItemDescriptor{
		ID:    types.ComputeItemID(s.share).Hex(),
		Path:  s.share,
		Title: s.share[strings.LastIndex(s.share, `\`)+1:],
		Kind:  types.KindFolder,
	}
}

// ListChildren lists dir in name order.
func (s *MountSession) ListChildren(ctx context.Context, dir types.ItemDescriptor) ([]types.ItemDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	local := s.localPath(dir.Path)
	entries, err := os.ReadDir(local)
	if err != nil {
		return nil, wrapFSError("list", dir.Path, err)
	}

	items := make([]types.ItemDescriptor, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !s.includeHidden && isHidden(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if !s.followSymlinks {
				continue
			}
			if info, err = os.Stat(filepath.Join(local, name)); err != nil {
				continue
			}
		}

		p := dir.Path + `\` + name
		item := types.ItemDescriptor{
			ID:         types.ComputeItemID(p).Hex(),
			Path:       p,
			Title:      name,
			Kind:       types.KindFile,
			Size:       info.Size(),
			CreatedAt:  createdAt(info),
			ModifiedAt: info.ModTime().UTC(),
		}
		if info.IsDir() {
			item.Kind = types.KindFolder
			item.Size = 0
		}
		items = append(items, item)
	}
	return items, nil
}

// Open opens the file behind item.
func (s *MountSession) Open(ctx context.Context, item types.ItemDescriptor) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.localPath(item.Path))
	if err != nil {
		return nil, wrapFSError("open", item.Path, err)
	}
	return f, nil
}

// ReadPermissions returns the DACL of item. Without WithCIFSACL it
// returns types.ErrUnsupported.
func (s *MountSession) ReadPermissions(ctx context.Context, item types.ItemDescriptor) ([]types.PermissionEntry, error) {
	if !s.readACL {
		return nil, types.ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := readCIFSACL(s.localPath(item.Path))
	if err != nil {
		return nil, wrapFSError("read permissions", item.Path, err)
	}
	return entries, nil
}

// localPath maps a UNC path under the share onto the mount.
func (s *MountSession) localPath(p string) string {
	rel := strings.TrimPrefix(p, s.share)
	rel = strings.Trim(strings.ReplaceAll(rel, `\`, "/"), "/")
	if rel == "" {
		return s.root
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// wrapFSError marks the errors a dropped or stale network mount produces
// as transient.
func wrapFSError(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, types.ErrUnsupported) {
		return err
	}
	transient := errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.ENOTCONN) ||
		errors.Is(err, syscall.ESTALE) ||
		errors.Is(err, syscall.EHOSTDOWN) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EAGAIN)
	return &types.RemoteError{Op: op, Path: p, Transient: transient, Err: err}
}

// isHidden reports dot-files. "." and ".." are not hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
