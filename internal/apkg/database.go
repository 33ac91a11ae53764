package apkg

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// FieldSeparator delimits field values within a note's flds column.
// It is a reserved control character not expected in normal text.
const FieldSeparator = "\x1f"

// RawField is one field definition of a raw model.
type RawField struct {
	Name    string `json:"name"`
	Ordinal int    `json:"ord"`
}

// RawTemplate is one question/answer format pair of a raw model.
type RawTemplate struct {
	Name     string `json:"name"`
	Ordinal  int    `json:"ord"`
	Question string `json:"qfmt"`
	Answer   string `json:"afmt"`
}

// RawModel is a note-type definition as stored in the collection database.
type RawModel struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Fields     []RawField    `json:"flds"`
	Templates  []RawTemplate `json:"tmpls"`
	Stylesheet string        `json:"css"`
}

// RawNote is one unit of content: a delimited set of field values plus tags.
type RawNote struct {
	ID      int64
	ModelID int64
	Fields  []string
	Tags    string
}

// RawCard is one schedulable presentation of a note. The scheduling
// counters are opaque to the import pipeline and carried through unchanged.
type RawCard struct {
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

// Collection holds the raw content extracted from one collection database.
type Collection struct {
	Models   map[int64]RawModel
	Notes    []RawNote
	Cards    []RawCard
	Warnings []string
}

// requiredColumns lists the tables and columns the extraction queries depend on.
var requiredColumns = map[string][]string{
	"col":   {"models"},
	"notes": {"id", "mid", "flds", "tags"},
	"cards": {"id", "nid", "did", "ord", "due", "ivl", "factor", "reps", "lapses", "left", "queue", "type"},
}

// Extractor opens an embedded collection database and yields raw rows.
// The caller owns the extractor for the duration of one import and must
// call Close on every exit path.
type Extractor struct {
	db       *sql.DB
	tempPath string
}

// NewExtractor materializes the database bytes to a temporary file and
// opens it read-only. It fails with ErrInvalidSchema when required tables
// or columns are absent.
func NewExtractor(dbBytes []byte) (*Extractor, error) {
	tempFile, err := os.CreateTemp("", "studymaster-collection-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp database file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(dbBytes); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write temp database file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temp database file: %w", err)
	}

	db, err := sql.Open("sqlite3", tempPath+"?mode=ro")
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}

	extractor := &Extractor{db: db, tempPath: tempPath}
	if err := extractor.validateSchema(); err != nil {
		extractor.Close()
		return nil, err
	}

	return extractor, nil
}

// Close releases the database handle and removes the temporary file.
func (e *Extractor) Close() error {
	var closeErr error
	if e.db != nil {
		closeErr = e.db.Close()
		e.db = nil
	}
	if e.tempPath != "" {
		os.Remove(e.tempPath)
		e.tempPath = ""
	}
	return closeErr
}

// Extract runs all read queries and assembles the raw collections.
// Row-level parse failures downgrade to warnings; only schema and query
// failures abort the extraction.
func (e *Extractor) Extract() (*Collection, error) {
	coll := &Collection{}

	models, warnings, err := e.Models()
	if err != nil {
		return nil, err
	}
	coll.Models = models
	coll.Warnings = append(coll.Warnings, warnings...)

	notes, cards, warnings, err := e.NotesAndCards()
	if err != nil {
		return nil, err
	}
	coll.Notes = notes
	coll.Cards = cards
	coll.Warnings = append(coll.Warnings, warnings...)

	return coll, nil
}

// Models reads the serialized model-definitions blob from the col table.
// Individual model entries that fail to decode are skipped with a warning.
func (e *Extractor) Models() (map[int64]RawModel, []string, error) {
	var blob string
	err := e.db.QueryRow("SELECT models FROM col LIMIT 1").Scan(&blob)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query model definitions: %w", err)
	}

	var rawEntries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &rawEntries); err != nil {
		return nil, nil, fmt.Errorf("%w: model definitions blob is not valid JSON: %v", ErrInvalidSchema, err)
	}

	models := make(map[int64]RawModel, len(rawEntries))
	var warnings []string
	for key, entry := range rawEntries {
		var model RawModel
		if err := json.Unmarshal(entry, &model); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped model %s: %v", key, err))
			continue
		}
		if model.ID == 0 {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipped model %s: no usable id", key))
				continue
			}
			model.ID = id
		}

		// Stable ordering for downstream hashing and field mapping.
		sort.Slice(model.Fields, func(i, j int) bool {
			return model.Fields[i].Ordinal < model.Fields[j].Ordinal
		})
		sort.Slice(model.Templates, func(i, j int) bool {
			return model.Templates[i].Ordinal < model.Templates[j].Ordinal
		})

		models[model.ID] = model
	}

	return models, warnings, nil
}

// NotesAndCards runs one joined query over notes and cards, ordered by
// note id then card ordinal. Notes without cards still appear (their card
// columns are NULL). Rows that fail to scan are skipped with a warning.
func (e *Extractor) NotesAndCards() ([]RawNote, []RawCard, []string, error) {
	query := `
		SELECT
			n.id, n.mid, n.flds, n.tags,
			c.id, c.did, c.ord, c.due, c.ivl, c.factor,
			c.reps, c.lapses, c."left", c.queue, c.type
		FROM notes n
		LEFT JOIN cards c ON c.nid = n.id
		ORDER BY n.id, c.ord;
	`

	rows, err := e.db.Query(query)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query notes and cards: %w", err)
	}
	defer rows.Close()

	var notes []RawNote
	var cards []RawCard
	var warnings []string
	seenNotes := make(map[int64]bool)

	for rows.Next() {
		var noteID, modelID int64
		var fieldValues, tags sql.NullString
		var cardID, deckID, ordinal, due, interval, factor sql.NullInt64
		var reps, lapses, left, queue, cardType sql.NullInt64

		err := rows.Scan(
			&noteID, &modelID, &fieldValues, &tags,
			&cardID, &deckID, &ordinal, &due, &interval, &factor,
			&reps, &lapses, &left, &queue, &cardType,
		)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped row: %v", err))
			continue
		}

		if !seenNotes[noteID] {
			seenNotes[noteID] = true
			notes = append(notes, RawNote{
				ID:      noteID,
				ModelID: modelID,
				Fields:  strings.Split(fieldValues.String, FieldSeparator),
				Tags:    tags.String,
			})
		}

		if cardID.Valid {
			cards = append(cards, RawCard{
				ID:       cardID.Int64,
				NoteID:   noteID,
				DeckID:   deckID.Int64,
				Ordinal:  ordinal.Int64,
				Due:      due.Int64,
				Interval: interval.Int64,
				Factor:   factor.Int64,
				Reps:     reps.Int64,
				Lapses:   lapses.Int64,
				Left:     left.Int64,
				Queue:    queue.Int64,
				Type:     cardType.Int64,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("error iterating note rows: %w", err)
	}

	return notes, cards, warnings, nil
}

func (e *Extractor) validateSchema() error {
	for table, columns := range requiredColumns {
		if !tableExists(e.db, table) {
			return fmt.Errorf("%w: missing required table: %s", ErrInvalidSchema, table)
		}
		for _, column := range columns {
			if !columnExists(e.db, table, column) {
				return fmt.Errorf("%w: missing required column: %s.%s", ErrInvalidSchema, table, column)
			}
		}
	}
	return nil
}

func tableExists(db *sql.DB, tableName string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, tableName, columnName string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == columnName {
			return true
		}
	}

	return false
}
