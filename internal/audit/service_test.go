package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditrepo "github.com/skelutten/studymaster-pwa-sub001/internal/database/audit"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
)

func setupService(t *testing.T) (*Service, *auditrepo.Repository) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.AuditEvent{}))

	repo := auditrepo.NewRepository(db)
	return NewService(repo), repo
}

func TestService_Log(t *testing.T) {
	service, repo := setupService(t)

	err := service.Log(&entities.AuditEvent{
		EventType:   entities.AuditEventImport,
		Action:      "apkg_import",
		Description: "Imported deck",
		Status:      entities.AuditStatusSuccess,
	})
	require.NoError(t, err)

	events, total, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "apkg_import", events[0].Action)
}

func TestService_LogImport(t *testing.T) {
	service, repo := setupService(t)

	service.LogImport("Imported geography.apkg: 2 models, 40 cards, 5 media files",
		entities.AuditStatusSuccess, 2, 40, 5, 1, "")

	// LogImport records in the background.
	require.Eventually(t, func() bool {
		_, total, err := repo.GetEvents(10, 0)
		return err == nil && total == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, _, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, entities.AuditEventImport, event.EventType)
	assert.Equal(t, "apkg_import", event.Action)
	assert.Equal(t, entities.AuditStatusSuccess, event.Status)
	assert.Empty(t, event.ErrorMsg)

	var metadata map[string]int
	require.NoError(t, json.Unmarshal([]byte(event.Metadata), &metadata))
	assert.Equal(t, 2, metadata["models_count"])
	assert.Equal(t, 40, metadata["cards_count"])
	assert.Equal(t, 5, metadata["media_count"])
	assert.Equal(t, 1, metadata["errors_count"])
}

func TestService_LogImportTruncatesError(t *testing.T) {
	service, repo := setupService(t)

	longMsg := ""
	for i := 0; i < 60; i++ {
		longMsg += "0123456789"
	}

	service.LogImport("Import failed", entities.AuditStatusFailed, 0, 0, 0, 0, longMsg)

	require.Eventually(t, func() bool {
		_, total, err := repo.GetEvents(10, 0)
		return err == nil && total == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, _, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, events[0].ErrorMsg, 500)
}
