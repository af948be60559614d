//go:build linux || darwin

// Package diskusage reports free space on the filesystem backing a path.
package diskusage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Stats describes a filesystem's capacity in bytes.
type Stats struct {
	Total     uint64
	Available uint64
}

// For returns capacity figures for the filesystem containing path.
func For(path string) (Stats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Stats{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Stats{
		Total:     uint64(st.Blocks) * bsize,
		Available: uint64(st.Bavail) * bsize,
	}, nil
}
