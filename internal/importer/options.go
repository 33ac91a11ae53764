package importer

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Options configures one import run.
type Options struct {
	// ChunkSize is the number of items processed per cooperative slice.
	// Zero selects DefaultChunkSize.
	ChunkSize int
}

// maxChunkSize bounds how long a single slice can hold the worker
// goroutine before it yields.
const maxChunkSize = 10000

func (o Options) withDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Validate checks the options after defaults have been applied.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.ChunkSize, validation.Required, validation.Min(1), validation.Max(maxChunkSize)),
	)
}
