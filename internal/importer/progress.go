package importer

import (
	"time"

	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

// errorTailSize bounds the rolling error window included in progress
// snapshots so snapshots stay small regardless of import size.
const errorTailSize = 10

// phaseRange maps a phase onto its share of the overall percentage.
type phaseRange struct {
	from float64
	to   float64
}

var phaseRanges = map[entities.ImportPhase]phaseRange{
	entities.PhaseInitializing:     {0, 10},
	entities.PhaseExtractingSchema: {10, 20},
	entities.PhaseProcessingModels: {20, 30},
	entities.PhaseProcessingCards:  {30, 80},
	entities.PhaseProcessingMedia:  {80, 100},
	entities.PhaseCompleted:        {100, 100},
}

// Reporter accumulates counters, warnings, and errors for one import and
// produces progress snapshots with a monotonically non-decreasing percent.
// It is owned by a single import goroutine and is not safe for concurrent use.
type Reporter struct {
	startedAt      time.Time
	lastPercent    int
	errors         []entities.ImportError
	warnings       []string
	securityIssues int
}

// NewReporter creates a Reporter for one import run.
func NewReporter() *Reporter {
	return &Reporter{startedAt: time.Now()}
}

// AddError records a recoverable error.
func (r *Reporter) AddError(e entities.ImportError) {
	r.errors = append(r.errors, e)
}

// AddWarning records a non-error structural condition.
func (r *Reporter) AddWarning(message string) {
	r.warnings = append(r.warnings, message)
}

// AddWarnings records multiple warnings at once.
func (r *Reporter) AddWarnings(messages []string) {
	r.warnings = append(r.warnings, messages...)
}

// AddSecurityIssues counts content items the sanitizer had to modify.
func (r *Reporter) AddSecurityIssues(n int) {
	r.securityIssues += n
}

// SecurityIssues returns how many content items were modified by the sanitizer.
func (r *Reporter) SecurityIssues() int {
	return r.securityIssues
}

// Errors returns all recorded errors.
func (r *Reporter) Errors() []entities.ImportError {
	return r.errors
}

// Warnings returns all recorded warnings.
func (r *Reporter) Warnings() []string {
	return r.warnings
}

// ErrorTail returns the most recent errors, bounded to errorTailSize.
func (r *Reporter) ErrorTail() []entities.ImportError {
	if len(r.errors) <= errorTailSize {
		return r.errors
	}
	return r.errors[len(r.errors)-errorTailSize:]
}

// Elapsed reports the time since the import started.
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.startedAt)
}

// Percent blends phase completion into an overall percentage and clamps
// it so successive values never decrease within one import.
func (r *Reporter) Percent(phase entities.ImportPhase, done, total int) int {
	span, ok := phaseRanges[phase]
	if !ok {
		return r.lastPercent
	}

	percent := span.to
	if total > 0 && done < total {
		percent = span.from + (span.to-span.from)*float64(done)/float64(total)
	}

	p := int(percent)
	if p < r.lastPercent {
		p = r.lastPercent
	}
	if p > 100 {
		p = 100
	}
	r.lastPercent = p
	return p
}

// Snapshot produces a progress message for the current state. The caller
// fills in the correlation id and memory usage.
func (r *Reporter) Snapshot(phase entities.ImportPhase, message string, done, total int) Progress {
	return Progress{
		Status:         phase,
		Message:        message,
		Percent:        r.Percent(phase, done, total),
		ItemsProcessed: done,
		TotalItems:     total,
		Errors:         r.ErrorTail(),
		Timestamp:      time.Now().UnixMilli(),
	}
}
