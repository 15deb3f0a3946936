// Package slicer computes and reads the byte ranges a file is divided
// into for chunked upload.
package slicer

import (
	"fmt"
	"io"
)

// Range is the half-open byte interval [Start, End) of one chunk.
type Range struct {
	Index int
	Start int64
	End   int64
}

// Len reports the number of bytes in the range.
func (r Range) Len() int64 { return r.End - r.Start }

// Plan computes the ordered list of chunk ranges for a file of fileSize
// bytes split into chunkSize-byte pieces. The final range may be shorter
// than chunkSize. A zero-byte file produces exactly one empty range, so a
// session always has at least one chunk to send.
func Plan(fileSize, chunkSize int64) ([]Range, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("slicer: chunkSize must be positive, got %d", chunkSize)
	}

	if fileSize < 0 {
		return nil, fmt.Errorf("slicer: fileSize must not be negative, got %d", fileSize)
	}

	if fileSize == 0 {
		return []Range{{Index: 0, Start: 0, End: 0}}, nil
	}

	total := (fileSize + chunkSize - 1) / chunkSize
	ranges := make([]Range, 0, total)

	for i := int64(0); i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize

		if end > fileSize {
			end = fileSize
		}

		ranges = append(ranges, Range{Index: int(i), Start: start, End: end})
	}

	return ranges, nil
}

// Count returns the number of chunks Plan would produce, without
// allocating the range slice.
func Count(fileSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}

	if fileSize == 0 {
		return 1
	}

	return int((fileSize + chunkSize - 1) / chunkSize)
}

// Read extracts the bytes for r from src, which must support positional
// reads (an *os.File, for instance). Concurrent Read calls against
// distinct, non-overlapping ranges of the same ReaderAt are safe.
func Read(src io.ReaderAt, r Range) ([]byte, error) {
	buf := make([]byte, r.Len())
	if len(buf) == 0 {
		return buf, nil
	}

	if _, err := src.ReadAt(buf, r.Start); err != nil {
		return nil, fmt.Errorf("slicer: reading range %d [%d,%d): %w", r.Index, r.Start, r.End, err)
	}

	return buf, nil
}
