// Package batcher splits work into fixed-size batches.
package batcher

import (
	"errors"
	"fmt"
)

// ErrInvalidBatchSize is returned when a batch size is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be > 0")

// Chunk splits items into batches of size elements; the last batch holds the
// remainder. The returned slices share the input's backing array but have
// their capacity capped, so appending to one never overwrites the next.
func Chunk[iType any](items []iType, size int) ([][]iType, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	if len(items) == 0 {
		return nil, nil
	}

	n := (len(items) + size - 1) / size
	out := make([][]iType, 0, n)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end:end])
	}
	return out, nil
}

// Count returns how many batches Chunk would produce.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
