// Package testutil builds deck archive fixtures for tests: a real SQLite
// collection database zipped together with a media manifest and payloads.
package testutil

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/stretchr/testify/require"
)

// Template is one question/answer format pair of a fixture model.
type Template struct {
	Name     string `json:"name"`
	Ordinal  int    `json:"ord"`
	Question string `json:"qfmt"`
	Answer   string `json:"afmt"`
}

// Model is one note-type definition to embed in the fixture collection.
type Model struct {
	ID         int64
	Name       string
	Fields     []string
	Templates  []Template
	Stylesheet string
}

// Note is one content row of the fixture collection.
type Note struct {
	ID      int64
	ModelID int64
	Fields  []string
	Tags    string
}

// Card is one scheduling row of the fixture collection.
type Card struct {
	ID       int64
	NoteID   int64
	DeckID   int64
	Ordinal  int64
	Due      int64
	Interval int64
	Factor   int64
	Reps     int64
	Lapses   int64
	Left     int64
	Queue    int64
	Type     int64
}

// Media is one manifest entry. A nil Data means the entry is listed in the
// manifest but its payload is absent from the archive.
type Media struct {
	Name string
	Data []byte
}

// DeckBuilder assembles a deck archive fixture. The zero value produces a
// valid archive with an empty collection.
type DeckBuilder struct {
	// CollectionEntry overrides the collection entry name. Defaults to
	// "collection.anki21".
	CollectionEntry string
	// ModelsBlob overrides the generated col.models JSON when non-empty.
	ModelsBlob string
	// OmitTable skips creating the named table, for schema error scenarios.
	OmitTable string
	// OmitManifest leaves the media manifest entry out entirely.
	OmitManifest bool
	// ManifestJSON overrides the generated media manifest when non-empty.
	ManifestJSON string

	Models []Model
	Notes  []Note
	Cards  []Card
	Media  []Media
}

// Build produces the archive bytes. Failures abort the calling test.
func (b *DeckBuilder) Build(t *testing.T) []byte {
	t.Helper()

	dbBytes := b.buildCollection(t)

	entryName := b.CollectionEntry
	if entryName == "" {
		entryName = "collection.anki21"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	writeEntry(t, zw, entryName, dbBytes)

	if !b.OmitManifest {
		writeEntry(t, zw, "media", []byte(b.manifest(t)))
	}
	for i, media := range b.Media {
		if media.Data == nil {
			continue
		}
		writeEntry(t, zw, strconv.Itoa(i), media.Data)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// BuildCollection produces just the collection database bytes, without
// the surrounding archive.
func (b *DeckBuilder) BuildCollection(t *testing.T) []byte {
	t.Helper()
	return b.buildCollection(t)
}

func (b *DeckBuilder) buildCollection(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "collection.sqlite")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	schema := map[string]string{
		"col":   `CREATE TABLE col (id INTEGER PRIMARY KEY, models TEXT)`,
		"notes": `CREATE TABLE notes (id INTEGER PRIMARY KEY, mid INTEGER, flds TEXT, tags TEXT)`,
		"cards": `CREATE TABLE cards (
			id INTEGER PRIMARY KEY, nid INTEGER, did INTEGER, ord INTEGER,
			due INTEGER, ivl INTEGER, factor INTEGER, reps INTEGER,
			lapses INTEGER, "left" INTEGER, queue INTEGER, type INTEGER
		)`,
	}
	for table, stmt := range schema {
		if table == b.OmitTable {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	if b.OmitTable != "col" {
		_, err = db.Exec("INSERT INTO col (id, models) VALUES (1, ?)", b.modelsBlob(t))
		require.NoError(t, err)
	}

	if b.OmitTable != "notes" {
		for _, note := range b.Notes {
			_, err := db.Exec(
				"INSERT INTO notes (id, mid, flds, tags) VALUES (?, ?, ?, ?)",
				note.ID, note.ModelID, strings.Join(note.Fields, "\x1f"), note.Tags,
			)
			require.NoError(t, err)
		}
	}

	if b.OmitTable != "cards" {
		for _, card := range b.Cards {
			_, err := db.Exec(
				`INSERT INTO cards (id, nid, did, ord, due, ivl, factor, reps, lapses, "left", queue, type)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				card.ID, card.NoteID, card.DeckID, card.Ordinal, card.Due, card.Interval,
				card.Factor, card.Reps, card.Lapses, card.Left, card.Queue, card.Type,
			)
			require.NoError(t, err)
		}
	}

	require.NoError(t, db.Close())

	dbBytes, err := os.ReadFile(path)
	require.NoError(t, err)
	return dbBytes
}

func (b *DeckBuilder) modelsBlob(t *testing.T) string {
	t.Helper()

	if b.ModelsBlob != "" {
		return b.ModelsBlob
	}

	entries := make(map[string]any, len(b.Models))
	for _, model := range b.Models {
		fields := make([]map[string]any, len(model.Fields))
		for i, name := range model.Fields {
			fields[i] = map[string]any{"name": name, "ord": i}
		}
		entries[strconv.FormatInt(model.ID, 10)] = map[string]any{
			"id":    model.ID,
			"name":  model.Name,
			"flds":  fields,
			"tmpls": model.Templates,
			"css":   model.Stylesheet,
		}
	}

	blob, err := json.Marshal(entries)
	require.NoError(t, err)
	return string(blob)
}

func (b *DeckBuilder) manifest(t *testing.T) string {
	t.Helper()

	if b.ManifestJSON != "" {
		return b.ManifestJSON
	}

	entries := make(map[string]string, len(b.Media))
	for i, media := range b.Media {
		entries[strconv.Itoa(i)] = media.Name
	}

	blob, err := json.Marshal(entries)
	require.NoError(t, err)
	return string(blob)
}

func writeEntry(t *testing.T, zw *zip.Writer, name string, data []byte) {
	t.Helper()

	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}
