// Package apkg reads vendor deck packages: zip containers holding an
// embedded SQLite collection database plus loose media payloads.
package apkg

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// CollectionEntry is the legacy name of the embedded collection database.
	CollectionEntry = "collection.anki2"
	// CollectionEntryV2 is the newer name; preferred when both are present.
	CollectionEntryV2 = "collection.anki21"
	// MediaManifestEntry maps stored ordinal names to original media filenames.
	MediaManifestEntry = "media"
)

var (
	// ErrInvalidArchive indicates the buffer is not a valid deck package.
	ErrInvalidArchive = errors.New("invalid deck archive")
	// ErrInvalidSchema indicates the embedded database is missing required tables or columns.
	ErrInvalidSchema = errors.New("invalid collection database schema")
	// ErrEntryNotFound indicates a named entry is absent from the archive.
	ErrEntryNotFound = errors.New("entry not found in archive")
)

// Archive provides read-only access to the entries of a deck package.
type Archive struct {
	reader *zip.Reader
}

// OpenArchive opens a deck package from an in-memory byte buffer.
// It fails with ErrInvalidArchive if the buffer is not a valid zip
// container or the collection database entry is absent. Database
// content is not validated here.
func OpenArchive(buf []byte) (*Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	archive := &Archive{reader: reader}
	if archive.CollectionEntryName() == "" {
		return nil, fmt.Errorf("%w: no collection database entry", ErrInvalidArchive)
	}

	return archive, nil
}

// EntryNames lists the names of all entries in the archive.
func (a *Archive) EntryNames() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, file := range a.reader.File {
		names = append(names, file.Name)
	}
	return names
}

// HasEntry reports whether an entry with the given name exists.
func (a *Archive) HasEntry(name string) bool {
	for _, file := range a.reader.File {
		if file.Name == name {
			return true
		}
	}
	return false
}

// ReadEntry reads the full contents of a named entry.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	for _, file := range a.reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// CollectionEntryName returns the name of the embedded collection database
// entry, preferring the newer format. Empty when neither entry is present.
func (a *Archive) CollectionEntryName() string {
	if a.HasEntry(CollectionEntryV2) {
		return CollectionEntryV2
	}
	if a.HasEntry(CollectionEntry) {
		return CollectionEntry
	}
	return ""
}
