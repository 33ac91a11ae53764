package importer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
	"github.com/skelutten/studymaster-pwa-sub001/internal/sanitize"
)

// CardStatusImported marks a card that passed transformation.
const CardStatusImported = "imported"

// TransformNoteCards joins one note's field values against its model's
// declared fields and emits one normalized card per raw card. Notes with
// fewer values than declared fields are padded with empty strings, extra
// values are ignored; both are reported as warnings through warn. Prior
// scheduling counters are copied through verbatim. The second return
// value counts how many field values the sanitizer had to modify.
func TransformNoteCards(note apkg.RawNote, model entities.NormalizedModel, cards []apkg.RawCard, warn func(string)) ([]entities.NormalizedCard, int) {
	if warn != nil {
		switch {
		case len(note.Fields) > len(model.Fields):
			warn(fmt.Sprintf(
				"note %d has %d field values but model %q declares %d fields; extras ignored",
				note.ID, len(note.Fields), model.Name, len(model.Fields),
			))
		case len(note.Fields) < len(model.Fields):
			warn(fmt.Sprintf(
				"note %d has %d field values but model %q declares %d fields; missing values padded",
				note.ID, len(note.Fields), model.Name, len(model.Fields),
			))
		}
	}

	securityIssues := 0
	fields := make(map[string]string, len(model.Fields))
	for i, name := range model.Fields {
		value := ""
		if i < len(note.Fields) {
			value = note.Fields[i]
		}
		cleaned := sanitize.Clean(value)
		if cleaned != value {
			securityIssues++
		}
		fields[name] = cleaned
	}

	tags := strings.Fields(note.Tags)

	normalized := make([]entities.NormalizedCard, 0, len(cards))
	for _, card := range cards {
		normalized = append(normalized, entities.NormalizedCard{
			ID:      uuid.New().String(),
			ModelID: model.ID,
			NoteID:  note.ID,
			CardID:  card.ID,
			DeckID:  card.DeckID,
			Fields:  copyFields(fields),
			Tags:    tags,
			Scheduling: entities.SchedulingState{
				Due:      card.Due,
				Interval: card.Interval,
				Factor:   card.Factor,
				Reps:     card.Reps,
				Lapses:   card.Lapses,
				Left:     card.Left,
				Queue:    card.Queue,
				Type:     card.Type,
			},
			Status: CardStatusImported,
		})
	}

	return normalized, securityIssues
}

// copyFields gives each emitted card its own field map so records stay
// immutable once emitted.
func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
