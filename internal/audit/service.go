// Package audit records import history so operators can review what was
// ingested, with what outcome, and how many records were affected.
package audit

import (
	"encoding/json"
	"log"

	"github.com/skelutten/studymaster-pwa-sub001/internal/database/audit"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// LogImport records the terminal outcome of one deck import.
func (s *Service) LogImport(description string, status entities.AuditStatus, models, cards, mediaFiles, errorCount int, errMsg string) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventImport,
		Action:      "apkg_import",
		Description: description,
		Status:      status,
		ErrorMsg:    truncate(errMsg, 500),
	}

	metadata := map[string]any{
		"models_count": models,
		"cards_count":  cards,
		"media_count":  mediaFiles,
		"errors_count": errorCount,
	}
	if mdBytes, err := json.Marshal(metadata); err == nil {
		event.Metadata = string(mdBytes)
	}

	s.LogAsync(event)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
