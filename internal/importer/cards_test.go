package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

func basicModel() entities.NormalizedModel {
	return entities.NormalizedModel{
		ID:     100,
		Name:   "Basic",
		Fields: []string{"Front", "Back"},
	}
}

func TestTransformNoteCards(t *testing.T) {
	t.Run("maps fields by name", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"Question", "Answer"}, Tags: "geo europe"}
		rawCards := []apkg.RawCard{
			{ID: 1, NoteID: 10, DeckID: 5, Due: 3, Interval: 7, Factor: 2500, Reps: 4, Lapses: 1, Left: 2, Queue: 2, Type: 2},
		}

		cards, securityIssues := TransformNoteCards(note, basicModel(), rawCards, nil)

		require.Len(t, cards, 1)
		assert.Zero(t, securityIssues)
		card := cards[0]
		assert.NotEmpty(t, card.ID)
		assert.Equal(t, int64(100), card.ModelID)
		assert.Equal(t, int64(10), card.NoteID)
		assert.Equal(t, int64(1), card.CardID)
		assert.Equal(t, int64(5), card.DeckID)
		assert.Equal(t, "Question", card.Fields["Front"])
		assert.Equal(t, "Answer", card.Fields["Back"])
		assert.Equal(t, []string{"geo", "europe"}, card.Tags)
		assert.Equal(t, CardStatusImported, card.Status)
	})

	t.Run("scheduling counters pass through verbatim", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"Q", "A"}}
		rawCards := []apkg.RawCard{
			{ID: 1, NoteID: 10, Due: -12345, Interval: 365, Factor: 1300, Reps: 99, Lapses: 7, Left: 1001, Queue: -1, Type: 3},
		}

		cards, _ := TransformNoteCards(note, basicModel(), rawCards, nil)

		require.Len(t, cards, 1)
		assert.Equal(t, entities.SchedulingState{
			Due: -12345, Interval: 365, Factor: 1300, Reps: 99,
			Lapses: 7, Left: 1001, Queue: -1, Type: 3,
		}, cards[0].Scheduling)
	})

	t.Run("pads missing field values", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"only front"}}
		rawCards := []apkg.RawCard{{ID: 1, NoteID: 10}}

		var warnings []string
		cards, _ := TransformNoteCards(note, basicModel(), rawCards, func(w string) {
			warnings = append(warnings, w)
		})

		require.Len(t, cards, 1)
		assert.Equal(t, "only front", cards[0].Fields["Front"])
		assert.Equal(t, "", cards[0].Fields["Back"])
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "missing values padded")
	})

	t.Run("warns on extra field values", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"a", "b", "extra"}}
		rawCards := []apkg.RawCard{{ID: 1, NoteID: 10}}

		var warnings []string
		cards, _ := TransformNoteCards(note, basicModel(), rawCards, func(w string) {
			warnings = append(warnings, w)
		})

		require.Len(t, cards, 1)
		assert.Len(t, cards[0].Fields, 2)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "extras ignored")
	})

	t.Run("sanitizes field values", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{`safe<script>bad()</script>`, "ok"}}
		rawCards := []apkg.RawCard{{ID: 1, NoteID: 10}}

		cards, securityIssues := TransformNoteCards(note, basicModel(), rawCards, nil)

		require.Len(t, cards, 1)
		assert.Equal(t, "safe", cards[0].Fields["Front"])
		assert.Equal(t, 1, securityIssues)
	})

	t.Run("one card per raw card with independent fields", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"Q", "A"}}
		rawCards := []apkg.RawCard{
			{ID: 1, NoteID: 10, Ordinal: 0},
			{ID: 2, NoteID: 10, Ordinal: 1},
		}

		cards, _ := TransformNoteCards(note, basicModel(), rawCards, nil)

		require.Len(t, cards, 2)
		assert.NotEqual(t, cards[0].ID, cards[1].ID)

		// Mutating one card's fields must not leak into its sibling.
		cards[0].Fields["Front"] = "mutated"
		assert.Equal(t, "Q", cards[1].Fields["Front"])
	})

	t.Run("no raw cards yields no normalized cards", func(t *testing.T) {
		note := apkg.RawNote{ID: 10, ModelID: 100, Fields: []string{"Q", "A"}}
		cards, _ := TransformNoteCards(note, basicModel(), nil, nil)
		assert.Empty(t, cards)
	})
}
