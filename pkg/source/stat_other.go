//go:build !windows

package source

import (
	"os"
	"time"
)

// createdAt falls back to the modification time; POSIX stat carries no
// birth time.
func createdAt(info os.FileInfo) time.Time {
	return info.ModTime().UTC()
}
