//go:build !linux

package source

import "github.com/praetorian-inc/sharecrawl/pkg/types"

func readCIFSACL(string) ([]types.PermissionEntry, error) {
	return nil, types.ErrUnsupported
}
