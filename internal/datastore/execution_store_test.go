package datastore

import (
	"context"
	"testing"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStore_InsertAndGet(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStore(db, zerolog.Nop())
	ctx := context.Background()

	exec := models.NewExecution("cfg-1", "client-a", models.TriggerSourceScheduled, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, exec))

	loaded, err := store.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.ExecutionStatusPending, loaded.Status)
	assert.Equal(t, models.TriggerSourceScheduled, loaded.TriggeredBy)
	assert.Nil(t, loaded.CompletedAt)
	assert.Equal(t, int64(1), loaded.Version)

	missing, err := store.GetByID(ctx, "no-such-execution")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExecutionStore_UpdateLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStore(db, zerolog.Nop())
	ctx := context.Background()

	exec := models.NewExecution("cfg-1", "client-a", models.TriggerSourceManual, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, exec))

	exec.MarkInProgress()
	exec.ResolvedPath = "https://host/inbound"
	exec.ResolvedFilename = "report-20260223.csv"
	require.NoError(t, store.Update(ctx, exec))

	exec.FilesFound = 2
	exec.FilesProcessed = 1
	exec.MarkCompleted(time.Now().UTC())
	require.NoError(t, store.Update(ctx, exec))

	loaded, err := store.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.FilesFound)
	assert.Equal(t, 1, loaded.FilesProcessed)
	require.NotNil(t, loaded.CompletedAt)
	assert.True(t, loaded.IsTerminal())
	assert.Equal(t, int64(3), loaded.Version)
}

func TestExecutionStore_VersionConflict(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStore(db, zerolog.Nop())
	ctx := context.Background()

	exec := models.NewExecution("cfg-1", "client-a", models.TriggerSourceScheduled, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, exec))

	stale := *exec
	exec.MarkInProgress()
	require.NoError(t, store.Update(ctx, exec))

	stale.MarkInProgress()
	err := store.Update(ctx, &stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestExecutionStore_ListByConfigurationNewestFirst(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStore(db, zerolog.Nop())
	ctx := context.Background()

	base := time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		exec := models.NewExecution("cfg-1", "client-a", models.TriggerSourceScheduled, base)
		exec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Insert(ctx, exec))
	}
	other := models.NewExecution("cfg-2", "client-b", models.TriggerSourceScheduled, base)
	require.NoError(t, store.Insert(ctx, other))

	executions, err := store.ListByConfiguration(ctx, "cfg-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 3)
	assert.True(t, executions[0].StartedAt.After(executions[1].StartedAt))
	assert.True(t, executions[1].StartedAt.After(executions[2].StartedAt))

	latest, err := store.LatestForConfiguration(ctx, "cfg-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, executions[0].ID, latest.ID)

	never, err := store.LatestForConfiguration(ctx, "cfg-never-ran")
	require.NoError(t, err)
	assert.Nil(t, never)
}

func TestExecutionStore_FailedExecutionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStore(db, zerolog.Nop())
	ctx := context.Background()

	exec := models.NewExecution("cfg-1", "client-a", models.TriggerSourceScheduled, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, exec))

	exec.MarkInProgress()
	require.NoError(t, store.Update(ctx, exec))
	exec.MarkFailed(time.Now().UTC(), "listing failed", models.CategoryConnection, 3)
	require.NoError(t, store.Update(ctx, exec))

	loaded, err := store.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, "listing failed", loaded.ErrorMessage)
	assert.Equal(t, models.CategoryConnection, loaded.ErrorCategory)
	assert.Equal(t, 3, loaded.RetryCount)
	require.NotNil(t, loaded.CompletedAt)
}
