package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, client)

	// Verify tasks database was created
	tasksDBPath := filepath.Join(tmpDir, "test-tasks.db")
	_, err = os.Stat(tasksDBPath)
	assert.NoError(t, err, "tasks database should be created")

	err = client.Close()
	assert.NoError(t, err)
}

func TestClientStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	success := client.Stop(stopCtx)
	assert.True(t, success, "stop should succeed gracefully")
}

// fakeCleaner records the retention it was invoked with.
type fakeCleaner struct {
	retention chan time.Duration
	err       error
}

func (f *fakeCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	f.retention <- retention
	return 3, f.err
}

func TestCleanupAuditEventsTask(t *testing.T) {
	t.Run("queue config", func(t *testing.T) {
		cfg := CleanupAuditEventsTask{RetentionDays: 30}.Config()

		assert.Equal(t, "cleanup_audit_events", cfg.Name)
		assert.Equal(t, 3, cfg.MaxAttempts)
		assert.Equal(t, 5*time.Minute, cfg.Backoff)
		assert.Equal(t, 2*time.Minute, cfg.Timeout)
		assert.NotNil(t, cfg.Retention)
	})

	t.Run("processor applies retention", func(t *testing.T) {
		cleaner := &fakeCleaner{retention: make(chan time.Duration, 1)}
		processor := CleanupAuditEventsProcessor(cleaner)

		err := processor(context.Background(), CleanupAuditEventsTask{RetentionDays: 7})
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, <-cleaner.retention)
	})

	t.Run("processor defaults retention", func(t *testing.T) {
		cleaner := &fakeCleaner{retention: make(chan time.Duration, 1)}
		processor := CleanupAuditEventsProcessor(cleaner)

		err := processor(context.Background(), CleanupAuditEventsTask{})
		require.NoError(t, err)
		assert.Equal(t, 30*24*time.Hour, <-cleaner.retention)
	})

	t.Run("processor propagates cleaner errors", func(t *testing.T) {
		cleaner := &fakeCleaner{retention: make(chan time.Duration, 1), err: errors.New("db locked")}
		processor := CleanupAuditEventsProcessor(cleaner)

		err := processor(context.Background(), CleanupAuditEventsTask{RetentionDays: 7})
		assert.ErrorContains(t, err, "db locked")
	})

	t.Run("processor rejects nil cleaner", func(t *testing.T) {
		processor := CleanupAuditEventsProcessor(nil)
		err := processor(context.Background(), CleanupAuditEventsTask{})
		assert.Error(t, err)
	})
}

func TestCleanupTaskEndToEnd(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	cleaner := &fakeCleaner{retention: make(chan time.Duration, 1)}
	client.Register(NewCleanupAuditEventsQueue(cleaner))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Add(CleanupAuditEventsTask{RetentionDays: 14}).Save()
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case retention := <-cleaner.retention:
		assert.Equal(t, 14*24*time.Hour, retention)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup task was not executed within timeout")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}
