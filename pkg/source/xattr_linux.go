//go:build linux

package source

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/praetorian-inc/sharecrawl/pkg/access"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

const cifsACLAttr = "system.cifs_acl"

func readCIFSACL(path string) ([]types.PermissionEntry, error) {
	size, err := unix.Getxattr(path, cifsACLAttr, nil)
	if err != nil {
		return nil, xattrError(err)
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, cifsACLAttr, buf)
	if err != nil {
		return nil, xattrError(err)
	}
	return access.ParseSecurityDescriptor(buf[:n])
}

func xattrError(err error) error {
	if errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
		return fmt.Errorf("%w: %s not available", types.ErrUnsupported, cifsACLAttr)
	}
	return err
}
