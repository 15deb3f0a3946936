// Package diskspace reports available disk space for the server's
// preflight check before accepting a chunk (spec §4.3/§5: reject with
// insufficient-disk-space when available space would fall below the
// configured safety buffer).
package diskspace

import "errors"

// ErrInsufficientDiskSpace is returned by CheckFree when available space
// does not cover the write plus the safety buffer, or is below the
// configured minimum free space.
var ErrInsufficientDiskSpace = errors.New("diskspace: insufficient disk space")

// StatFunc reports bytes available to unprivileged users on the volume
// containing path. Injectable for tests.
type StatFunc func(path string) (uint64, error)

// Available is the package-level StatFunc, platform-specific (see
// diskspace_linux.go / diskspace_other.go).
var Available StatFunc = getDiskSpace

// CheckFree verifies two independent conditions hold after writing
// writeBytes more data to path's volume: available space must cover the
// write plus the configured safetyBuffer, and available space must never
// drop below the absolute minFree floor, regardless of the write size.
func CheckFree(path string, writeBytes, minFree, safetyBuffer int64, stat StatFunc) error {
	if stat == nil {
		stat = Available
	}

	available, err := stat(path)
	if err != nil {
		return err
	}

	avail := int64(available) //nolint:gosec // bounded by kernel-reported statfs values

	if avail < writeBytes+safetyBuffer {
		return ErrInsufficientDiskSpace
	}

	if avail < minFree {
		return ErrInsufficientDiskSpace
	}

	return nil
}
