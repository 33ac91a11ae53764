package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "default chunk size", opts: Options{}.withDefaults(), wantErr: false},
		{name: "explicit chunk size", opts: Options{ChunkSize: 500}, wantErr: false},
		{name: "maximum chunk size", opts: Options{ChunkSize: maxChunkSize}, wantErr: false},
		{name: "negative chunk size", opts: Options{ChunkSize: -1}, wantErr: true},
		{name: "oversized chunk size", opts: Options{ChunkSize: maxChunkSize + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_withDefaults(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, Options{}.withDefaults().ChunkSize)
	assert.Equal(t, 42, Options{ChunkSize: 42}.withDefaults().ChunkSize)
}
