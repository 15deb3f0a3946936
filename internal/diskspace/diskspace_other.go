//go:build !linux

package diskspace

import "syscall"

// getDiskSpace returns available bytes on the volume containing path for
// non-Linux platforms, using the portable (if less precise) syscall.Statfs.
func getDiskSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}

	return uint64(stat.Bavail) * uint64(stat.Bsize), nil //nolint:gosec // kernel guarantees non-negative values
}
