package importer

import (
	"context"
	"fmt"
	"runtime"
)

const (
	// DefaultChunkSize is the number of items processed per cooperative slice.
	DefaultChunkSize = 100

	// reliefInterval is how many chunks run between memory-pressure relief hints.
	reliefInterval = 10
)

// ItemError records a failure isolated to a single item of a chunked run.
type ItemError struct {
	Index int
	Err   error
}

// Chunker drives an ordered collection through a processing function in
// bounded-size slices. It yields control and observes cancellation between
// slices, and hints the runtime to relieve memory pressure every
// reliefInterval chunks. Failures are isolated per item, not per slice:
// an error or panic while processing one item never prevents the remaining
// items from being attempted. Chunking never alters results, only scheduling.
type Chunker struct {
	size int
}

// NewChunker returns a Chunker with the given slice size. Sizes below one
// fall back to DefaultChunkSize.
func NewChunker(size int) *Chunker {
	if size < 1 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

// Run processes items [0, total) in order. afterChunk, when non-nil, is
// invoked after each slice with the number of items attempted so far.
// It returns the per-item failures plus a non-nil error only when the
// context was cancelled; the in-flight slice completes before Run returns.
func (c *Chunker) Run(ctx context.Context, total int, process func(i int) error, afterChunk func(processed int)) ([]ItemError, error) {
	var itemErrors []ItemError
	chunks := 0

	for start := 0; start < total; start += c.size {
		if err := ctx.Err(); err != nil {
			return itemErrors, err
		}

		end := min(start+c.size, total)
		for i := start; i < end; i++ {
			if err := runIsolated(process, i); err != nil {
				itemErrors = append(itemErrors, ItemError{Index: i, Err: err})
			}
		}

		chunks++
		if afterChunk != nil {
			afterChunk(end)
		}
		if chunks%reliefInterval == 0 {
			runtime.GC()
		}
		runtime.Gosched()
	}

	return itemErrors, nil
}

// runIsolated converts a panic during one item into an ordinary error so
// a corrupt record cannot abort the whole run.
func runIsolated(process func(int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing item %d: %v", i, r)
		}
	}()
	return process(i)
}
