//go:build !linux && !darwin

package diskusage

import "errors"

// ErrUnsupported is returned on platforms without statfs.
var ErrUnsupported = errors.New("disk usage not supported on this platform")

// Stats describes a filesystem's capacity in bytes.
type Stats struct {
	Total     uint64
	Available uint64
}

// For always fails on this platform.
func For(string) (Stats, error) {
	return Stats{}, ErrUnsupported
}
