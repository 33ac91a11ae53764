// Package importer implements the chunked deck import pipeline. Each
// import runs in its own goroutine with per-import state and reports back
// to the host exclusively through an ordered message channel: zero or
// more progress messages followed by exactly one terminal message.
package importer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/google/uuid"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

// MessageKind discriminates the messages an import emits.
type MessageKind string

const (
	MessageProgress  MessageKind = "progress"
	MessageComplete  MessageKind = "complete"
	MessageFailed    MessageKind = "error"
	MessageCancelled MessageKind = "cancelled"
)

// Message is one pipeline-to-host message. Every message carries the
// correlation id of the import that produced it.
type Message interface {
	Kind() MessageKind
	CorrelationID() string
}

// Progress is a point-in-time status snapshot.
type Progress struct {
	ID             string                 `json:"id"`
	Status         entities.ImportPhase   `json:"status"`
	Message        string                 `json:"message"`
	Percent        int                    `json:"percent"`
	ItemsProcessed int                    `json:"items_processed"`
	TotalItems     int                    `json:"total_items"`
	Errors         []entities.ImportError `json:"errors,omitempty"`
	MemoryUsage    uint64                 `json:"memory_usage"`
	Timestamp      int64                  `json:"timestamp"`
}

func (p Progress) Kind() MessageKind { return MessageProgress }
func (p Progress) CorrelationID() string { return p.ID }

// Complete is the terminal success message. The summary is present even
// when it contains zero models or cards; callers inspect the counts.
type Complete struct {
	ID      string                  `json:"id"`
	Summary *entities.ImportSummary `json:"summary"`
}

func (c Complete) Kind() MessageKind { return MessageComplete }
func (c Complete) CorrelationID() string { return c.ID }

// Failed is the terminal failure message; it carries no partial results.
type Failed struct {
	ID          string `json:"id"`
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

func (f Failed) Kind() MessageKind { return MessageFailed }
func (f Failed) CorrelationID() string { return f.ID }

// Cancelled is the terminal message for a cooperatively cancelled import.
// Already-transformed items are discarded; a cancelled import never also
// completes.
type Cancelled struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (c Cancelled) Kind() MessageKind { return MessageCancelled }
func (c Cancelled) CorrelationID() string { return c.ID }

// Import is the host-side handle of one running import.
type Import struct {
	id       string
	messages chan Message
	cancel   context.CancelFunc
}

// ID returns the import's correlation id.
func (im *Import) ID() string {
	return im.id
}

// Messages returns the ordered message channel. The channel closes after
// the terminal message; the consumer must drain it.
func (im *Import) Messages() <-chan Message {
	return im.messages
}

// Cancel requests cooperative cancellation. It is observed at the next
// chunk boundary; the in-flight chunk completes first.
func (im *Import) Cancel() {
	im.cancel()
}

// Start begins one import of the given archive buffer in its own
// goroutine. It returns immediately; all further communication happens
// over the handle's message channel.
func Start(ctx context.Context, buf []byte, opts Options) (*Import, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid import options: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	im := &Import{
		id:       uuid.New().String(),
		messages: make(chan Message, 16),
		cancel:   cancel,
	}

	go im.run(runCtx, buf, opts)

	return im, nil
}

func (im *Import) run(ctx context.Context, buf []byte, opts Options) {
	defer im.cancel()
	defer close(im.messages)

	r := &importRun{
		im:       im,
		reporter: NewReporter(),
		chunker:  NewChunker(opts.ChunkSize),
	}

	summary, err := r.execute(ctx, buf)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		im.messages <- Cancelled{ID: im.id, Message: "import cancelled before completion"}
	case err != nil:
		im.messages <- Failed{ID: im.id, Error: err.Error(), Recoverable: false}
	default:
		im.messages <- Complete{ID: im.id, Summary: summary}
	}
}

// importRun holds all per-import state. One instance is created per
// import and passed explicitly; nothing is shared between imports.
type importRun struct {
	im       *Import
	reporter *Reporter
	chunker  *Chunker
}

func (r *importRun) execute(ctx context.Context, buf []byte) (*entities.ImportSummary, error) {
	r.progress(entities.PhaseInitializing, "opening deck archive", 0, 0)

	archive, err := apkg.OpenArchive(buf)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.progress(entities.PhaseExtractingSchema, "extracting collection database", 0, 0)

	dbBytes, err := archive.ReadEntry(archive.CollectionEntryName())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apkg.ErrInvalidArchive, err)
	}

	extractor, err := apkg.NewExtractor(dbBytes)
	if err != nil {
		return nil, err
	}
	// The database handle is the only persistent resource of an import;
	// release it on every exit path.
	defer extractor.Close()

	coll, err := extractor.Extract()
	if err != nil {
		return nil, err
	}
	r.reporter.AddWarnings(coll.Warnings)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	models, err := r.processModels(ctx, coll)
	if err != nil {
		return nil, err
	}

	cards, err := r.processCards(ctx, coll, models)
	if err != nil {
		return nil, err
	}

	media, err := r.processMedia(ctx, archive)
	if err != nil {
		return nil, err
	}

	summary := &entities.ImportSummary{
		Models:              modelSlice(models),
		Cards:               cards,
		MediaFiles:          media,
		ModelsProcessed:     len(models),
		CardsProcessed:      len(cards),
		MediaProcessed:      len(media),
		ErrorsEncountered:   len(r.reporter.Errors()),
		SecurityIssuesFound: r.reporter.SecurityIssues(),
		Errors:              r.reporter.Errors(),
		Warnings:            r.reporter.Warnings(),
		Elapsed:             r.reporter.Elapsed(),
	}

	r.progress(entities.PhaseCompleted, "import complete", summary.CardsProcessed, summary.CardsProcessed)

	return summary, nil
}

// processModels transforms all raw models in chunks. Partial failures are
// recorded and processing continues; model transformation always happens
// before card transformation so cards can be checked against the
// transformed model set.
func (r *importRun) processModels(ctx context.Context, coll *apkg.Collection) (map[int64]entities.NormalizedModel, error) {
	ids := make([]int64, 0, len(coll.Models))
	for id := range coll.Models {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	models := make(map[int64]entities.NormalizedModel, len(ids))

	r.progress(entities.PhaseProcessingModels, "processing note types", 0, len(ids))
	itemErrors, err := r.chunker.Run(ctx, len(ids),
		func(i int) error {
			model, securityIssues := TransformModel(coll.Models[ids[i]])
			models[ids[i]] = model
			r.reporter.AddSecurityIssues(securityIssues)
			return nil
		},
		func(done int) {
			r.progress(entities.PhaseProcessingModels, "processing note types", done, len(ids))
		},
	)
	for _, itemErr := range itemErrors {
		// A failed model is not emitted at all; its cards are dropped later.
		delete(models, ids[itemErr.Index])
		r.reporter.AddError(entities.ImportError{
			Type:    entities.ErrorTypeModelProcessing,
			ModelID: ids[itemErr.Index],
			Message: itemErr.Err.Error(),
		})
	}
	if err != nil {
		return nil, err
	}

	return models, nil
}

// processCards transforms all notes in chunks, one slice of notes at a
// time. Cards whose model did not survive transformation are dropped with
// a recorded error so no emitted card references a missing model.
func (r *importRun) processCards(ctx context.Context, coll *apkg.Collection, models map[int64]entities.NormalizedModel) ([]entities.NormalizedCard, error) {
	cardsByNote := make(map[int64][]apkg.RawCard, len(coll.Notes))
	for _, card := range coll.Cards {
		cardsByNote[card.NoteID] = append(cardsByNote[card.NoteID], card)
	}

	var cards []entities.NormalizedCard
	totalNotes := len(coll.Notes)

	r.progress(entities.PhaseProcessingCards, "processing cards", 0, totalNotes)
	itemErrors, err := r.chunker.Run(ctx, totalNotes,
		func(i int) error {
			note := coll.Notes[i]
			noteCards := cardsByNote[note.ID]

			model, ok := models[note.ModelID]
			if !ok {
				for _, card := range noteCards {
					r.reporter.AddError(entities.ImportError{
						Type:    entities.ErrorTypeCardProcessing,
						ModelID: note.ModelID,
						NoteID:  note.ID,
						CardID:  card.ID,
						Message: fmt.Sprintf("note %d references missing model %d", note.ID, note.ModelID),
					})
				}
				return nil
			}

			noteCardsOut, securityIssues := TransformNoteCards(note, model, noteCards, r.reporter.AddWarning)
			cards = append(cards, noteCardsOut...)
			r.reporter.AddSecurityIssues(securityIssues)
			return nil
		},
		func(done int) {
			r.progress(entities.PhaseProcessingCards, "processing cards", done, totalNotes)
		},
	)
	for _, itemErr := range itemErrors {
		r.reporter.AddError(entities.ImportError{
			Type:    entities.ErrorTypeChunkProcessing,
			NoteID:  coll.Notes[itemErr.Index].ID,
			Message: itemErr.Err.Error(),
		})
	}
	if err != nil {
		return nil, err
	}

	return cards, nil
}

// processMedia extracts all media payloads listed in the manifest in
// chunks. Missing payloads are warnings; partial media archives still
// import successfully.
func (r *importRun) processMedia(ctx context.Context, archive *apkg.Archive) ([]entities.MediaRecord, error) {
	extractor, warnings := NewMediaExtractor(archive)
	r.reporter.AddWarnings(warnings)

	var media []entities.MediaRecord
	total := extractor.Len()

	r.progress(entities.PhaseProcessingMedia, "extracting media files", 0, total)
	itemErrors, err := r.chunker.Run(ctx, total,
		func(i int) error {
			record, warning := extractor.Extract(i)
			if record == nil {
				r.reporter.AddWarning(warning)
				return nil
			}
			media = append(media, *record)
			return nil
		},
		func(done int) {
			r.progress(entities.PhaseProcessingMedia, "extracting media files", done, total)
		},
	)
	for _, itemErr := range itemErrors {
		r.reporter.AddError(entities.ImportError{
			Type:    entities.ErrorTypeChunkProcessing,
			Message: itemErr.Err.Error(),
		})
	}
	if err != nil {
		return nil, err
	}

	return media, nil
}

func (r *importRun) progress(phase entities.ImportPhase, message string, done, total int) {
	snapshot := r.reporter.Snapshot(phase, message, done, total)
	snapshot.ID = r.im.id

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	snapshot.MemoryUsage = memStats.HeapAlloc

	r.im.messages <- snapshot
}

func modelSlice(models map[int64]entities.NormalizedModel) []entities.NormalizedModel {
	out := make([]entities.NormalizedModel, 0, len(models))
	for _, model := range models {
		out = append(out, model)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
