package entities

import "time"

// ImportPhase identifies where an import currently is in its lifecycle.
type ImportPhase string

const (
	PhaseIdle             ImportPhase = "idle"
	PhaseInitializing     ImportPhase = "initializing"
	PhaseExtractingSchema ImportPhase = "extracting_schema"
	PhaseProcessingModels ImportPhase = "processing_models"
	PhaseProcessingCards  ImportPhase = "processing_cards"
	PhaseProcessingMedia  ImportPhase = "processing_media"
	PhaseCompleted        ImportPhase = "completed"
	PhaseCancelled        ImportPhase = "cancelled"
	PhaseFailed           ImportPhase = "failed"
)

// ImportErrorType classifies recoverable per-item failures.
type ImportErrorType string

const (
	ErrorTypeModelProcessing ImportErrorType = "model_processing"
	ErrorTypeCardProcessing  ImportErrorType = "card_processing"
	ErrorTypeChunkProcessing ImportErrorType = "chunk_processing"
)

// ImportError records one recoverable failure. Processing continues past it;
// the entry surfaces in progress snapshots and in the terminal summary.
type ImportError struct {
	Type    ImportErrorType `json:"type"`
	ModelID int64           `json:"model_id,omitempty"`
	NoteID  int64           `json:"note_id,omitempty"`
	CardID  int64           `json:"card_id,omitempty"`
	Message string          `json:"message"`
}

// CardTemplate is one question/answer rendering rule bound to a model.
type CardTemplate struct {
	Name     string `json:"name"`
	Ordinal  int    `json:"ordinal"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NormalizedModel is a transformed, sanitized note-type definition.
// Immutable once emitted.
type NormalizedModel struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	ContentHash string         `json:"content_hash"`
	Fields      []string       `json:"fields"`
	Templates   []CardTemplate `json:"templates"`
	Stylesheet  string         `json:"stylesheet"`
	MediaRefs   []string       `json:"media_refs,omitempty"`
	Sanitized   bool           `json:"sanitized"`
}

// SchedulingState carries the prior scheduling counters of a card.
// The import pipeline copies these through verbatim; they are consumed
// by the downstream review scheduler, never reinterpreted here.
type SchedulingState struct {
	Due      int64 `json:"due"`
	Interval int64 `json:"interval"`
	Factor   int64 `json:"factor"`
	Reps     int64 `json:"reps"`
	Lapses   int64 `json:"lapses"`
	Left     int64 `json:"left"`
	Queue    int64 `json:"queue"`
	Type     int64 `json:"type"`
}

// NormalizedCard is a transformed, sanitized card ready for storage.
// Its ModelID always references a NormalizedModel present in the same
// ImportSummary.
type NormalizedCard struct {
	ID         string            `json:"id"`
	ModelID    int64             `json:"model_id"`
	NoteID     int64             `json:"note_id"`
	CardID     int64             `json:"card_id"`
	DeckID     int64             `json:"deck_id"`
	Fields     map[string]string `json:"fields"`
	Tags       []string          `json:"tags,omitempty"`
	Scheduling SchedulingState   `json:"scheduling"`
	Status     string            `json:"status"`
}

// MediaRecord describes one media payload extracted from the archive.
type MediaRecord struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	Status       string `json:"status"`
}

// ImportSummary is the terminal result of one import run. A summary is
// produced exactly once per successful or partially-successful import;
// callers must inspect ErrorsEncountered and SecurityIssuesFound to
// decide whether to warn the user even when the outcome is "complete".
type ImportSummary struct {
	Models     []NormalizedModel `json:"models"`
	Cards      []NormalizedCard  `json:"cards"`
	MediaFiles []MediaRecord     `json:"media_files"`

	ModelsProcessed     int           `json:"models_processed"`
	CardsProcessed      int           `json:"cards_processed"`
	MediaProcessed      int           `json:"media_processed"`
	ErrorsEncountered   int           `json:"errors_encountered"`
	SecurityIssuesFound int           `json:"security_issues_found"`
	Errors              []ImportError `json:"errors,omitempty"`
	Warnings            []string      `json:"warnings,omitempty"`
	Elapsed             time.Duration `json:"elapsed"`
}
