// Package validator enforces the request-shape rules of spec §4.6 before a
// chunk reaches the chunk store.
package validator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/multierr"

	"github.com/chunkrelay/chunkrelay/internal/apperr"
)

const maxSessionIDLen = 255

const maxFileNameLen = 255

// windowsReservedNames are device names reserved on Windows regardless of
// extension; rejecting them keeps assembled filenames portable.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Limits mirrors the subset of config.LimitsConfig the validator enforces,
// kept as a separate plain struct so this package has no import dependency
// on internal/config.
type Limits struct {
	MaxChunkSize   int64
	MaxChunkCount  int
	ExtensionAllow []string
	ExtensionBlock []string
}

// ChunkRequest is the shape-checked input to a saveChunk call, normalized
// from either the multipart or binary transport.
type ChunkRequest struct {
	SessionID   string
	ChunkIndex  int
	TotalChunks int
	FileName    string
	DataLen     int
}

// ValidateChunk checks req against the rules of spec §4.6, accumulating
// every violation via multierr before returning, so a caller sees the full
// set of problems in one response.
func ValidateChunk(req ChunkRequest, limits Limits) error {
	var err error

	err = multierr.Append(err, validateSessionID(req.SessionID))
	err = multierr.Append(err, validateTotalChunks(req.TotalChunks, limits.MaxChunkCount))
	err = multierr.Append(err, validateChunkIndex(req.ChunkIndex, req.TotalChunks))
	err = multierr.Append(err, validateChunkLength(req.DataLen, req.TotalChunks, limits.MaxChunkSize))

	if req.FileName != "" {
		err = multierr.Append(err, validateFileName(req.FileName, limits))
	}

	if err != nil {
		return apperr.New(apperr.ErrValidation, multierr.Errors(err)[0].Error()).
			WithDetails(detailsFrom(err))
	}

	return nil
}

func detailsFrom(err error) map[string]string {
	errs := multierr.Errors(err)
	details := make(map[string]string, len(errs))

	for i, e := range errs {
		details[fmt.Sprintf("error_%d", i)] = e.Error()
	}

	return details
}

func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("sessionId: must not be empty")
	}

	if len(id) > maxSessionIDLen {
		return fmt.Errorf("sessionId: length %d exceeds maximum %d", len(id), maxSessionIDLen)
	}

	for _, r := range id {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("sessionId: contains non-printable character %q", r)
		}
	}

	return nil
}

func validateTotalChunks(totalChunks, maxChunkCount int) error {
	if totalChunks < 1 {
		return fmt.Errorf("totalChunks: must be >= 1, got %d", totalChunks)
	}

	if maxChunkCount > 0 && totalChunks > maxChunkCount {
		return fmt.Errorf("totalChunks: %d exceeds maximum %d", totalChunks, maxChunkCount)
	}

	return nil
}

func validateChunkIndex(chunkIndex, totalChunks int) error {
	if chunkIndex < 0 || (totalChunks > 0 && chunkIndex >= totalChunks) {
		return fmt.Errorf("chunkIndex: %d out of range [0,%d)", chunkIndex, totalChunks)
	}

	return nil
}

func validateChunkLength(dataLen, totalChunks int, maxChunkSize int64) error {
	if dataLen == 0 && totalChunks != 1 {
		return fmt.Errorf("chunk data: empty chunk only permitted when totalChunks=1")
	}

	if dataLen == 0 {
		return nil
	}

	if maxChunkSize > 0 && int64(dataLen) > maxChunkSize {
		return fmt.Errorf("chunk data: length %d exceeds maximum %d", dataLen, maxChunkSize)
	}

	return nil
}

func validateFileName(name string, limits Limits) error {
	if len(name) > maxFileNameLen {
		return fmt.Errorf("fileName: length %d exceeds maximum %d", len(name), maxFileNameLen)
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("fileName: must not contain %q", "..")
	}

	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("fileName: must not contain path separators")
	}

	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("fileName: contains control or null byte")
		}
	}

	stem := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	if windowsReservedNames[stem] {
		return fmt.Errorf("fileName: %q is a reserved device name", name)
	}

	return validateExtension(name, limits)
}

func validateExtension(name string, limits Limits) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")

	if len(limits.ExtensionAllow) > 0 {
		if !contains(limits.ExtensionAllow, ext) {
			return fmt.Errorf("fileName: extension %q is not in the allow-list", ext)
		}

		return nil
	}

	if contains(limits.ExtensionBlock, ext) {
		return fmt.Errorf("fileName: extension %q is blocked", ext)
	}

	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}

	return false
}

// ParseChunkIndex parses a string form of chunkIndex/totalChunks (as arrive
// via multipart form fields or binary headers), returning a validation
// error on non-integer input rather than panicking downstream.
func ParseChunkIndex(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", field, s)
	}

	return n, nil
}
