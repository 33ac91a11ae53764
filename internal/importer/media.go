package importer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

// MediaStatusExtracted marks a media payload that was pulled from the archive.
const MediaStatusExtracted = "extracted"

// genericContentType is used for extensions outside the lookup table.
const genericContentType = "application/octet-stream"

var filenameNormalizer = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// contentTypes is a fixed extension lookup; deck media is a small, known
// set of image/audio/video formats.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// NormalizeFilename replaces every character outside [A-Za-z0-9.-] with
// an underscore. It is total: it never fails, and an empty input yields
// a placeholder name.
func NormalizeFilename(name string) string {
	normalized := filenameNormalizer.ReplaceAllString(name, "_")
	if normalized == "" {
		return "unnamed"
	}
	return normalized
}

// GuessContentType returns the content type for a filename's extension,
// falling back to a generic binary marker for unknown extensions.
func GuessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType, ok := contentTypes[ext]; ok {
		return contentType
	}
	return genericContentType
}

type manifestEntry struct {
	ordinal  string
	original string
}

// MediaExtractor reads the media manifest of a deck archive and pulls
// each listed payload out of the archive on demand, so extraction can be
// driven in chunks.
type MediaExtractor struct {
	archive *apkg.Archive
	entries []manifestEntry
}

// NewMediaExtractor parses the archive's media manifest. A missing or
// unreadable manifest yields an empty extractor plus a warning rather
// than a failure; archives without media must still import.
func NewMediaExtractor(archive *apkg.Archive) (*MediaExtractor, []string) {
	extractor := &MediaExtractor{archive: archive}

	if !archive.HasEntry(apkg.MediaManifestEntry) {
		return extractor, []string{"archive has no media manifest entry"}
	}

	data, err := archive.ReadEntry(apkg.MediaManifestEntry)
	if err != nil {
		return extractor, []string{fmt.Sprintf("failed to read media manifest: %v", err)}
	}

	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return extractor, []string{fmt.Sprintf("media manifest is not a valid JSON object: %v", err)}
	}

	ordinals := make([]string, 0, len(manifest))
	for ordinal := range manifest {
		ordinals = append(ordinals, ordinal)
	}
	sort.Strings(ordinals)

	extractor.entries = make([]manifestEntry, 0, len(ordinals))
	for _, ordinal := range ordinals {
		extractor.entries = append(extractor.entries, manifestEntry{
			ordinal:  ordinal,
			original: manifest[ordinal],
		})
	}

	return extractor, nil
}

// Len returns the number of manifest entries.
func (m *MediaExtractor) Len() int {
	return len(m.entries)
}

// Extract pulls the payload for manifest entry i. A manifest entry whose
// payload is missing from the archive is skipped: Extract returns a nil
// record and a warning instead of an error.
func (m *MediaExtractor) Extract(i int) (*entities.MediaRecord, string) {
	entry := m.entries[i]

	payload, err := m.archive.ReadEntry(entry.ordinal)
	if err != nil {
		return nil, fmt.Sprintf("media payload %s (%s) missing from archive", entry.ordinal, entry.original)
	}

	return &entities.MediaRecord{
		ID:           uuid.New().String(),
		Filename:     NormalizeFilename(entry.original),
		OriginalName: entry.original,
		Size:         int64(len(payload)),
		ContentType:  GuessContentType(entry.original),
		Status:       MediaStatusExtracted,
	}, ""
}
