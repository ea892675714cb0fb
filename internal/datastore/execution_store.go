package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// ErrVersionConflict is returned when a compare-and-swap update loses to a
// concurrent writer.
var ErrVersionConflict = fmt.Errorf("version conflict: record was modified concurrently")

// ExecutionStore persists execution records. Updates are guarded by the
// version column so a stale engine instance cannot clobber a newer write.
type ExecutionStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewExecutionStore creates an execution store on the shared DB.
func NewExecutionStore(db *DB, logger zerolog.Logger) *ExecutionStore {
	return &ExecutionStore{
		db:     db,
		logger: logger.With().Str("component", "ExecutionStore").Logger(),
	}
}

// Insert persists a freshly created (Pending) execution.
func (s *ExecutionStore) Insert(ctx context.Context, exec *models.Execution) error {
	exec.Version = 1
	query := `INSERT INTO executions
		(id, configuration_id, client_id, status, triggered_by, reference_instant, started_at,
		 completed_at, files_found, files_processed, resolved_path, resolved_filename,
		 duration_ms, retry_count, error_message, error_category, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.db.ExecContext(ctx, query,
		exec.ID, exec.ConfigurationID, exec.ClientID, string(exec.Status), string(exec.TriggeredBy),
		exec.ReferenceInstant, exec.StartedAt, nullableTime(exec.CompletedAt),
		exec.FilesFound, exec.FilesProcessed, exec.ResolvedPath, exec.ResolvedFilename,
		exec.Duration.Milliseconds(), exec.RetryCount, exec.ErrorMessage, string(exec.ErrorCategory), exec.Version)
	if err != nil {
		return fmt.Errorf("failed to insert execution %s: %w", exec.ID, err)
	}
	return nil
}

// Update writes the execution's current state, compare-and-swapping on the
// version it was last read at. On success the in-memory version is bumped.
func (s *ExecutionStore) Update(ctx context.Context, exec *models.Execution) error {
	query := `UPDATE executions SET
		status = ?, completed_at = ?, files_found = ?, files_processed = ?,
		resolved_path = ?, resolved_filename = ?, duration_ms = ?, retry_count = ?,
		error_message = ?, error_category = ?, version = version + 1
		WHERE id = ? AND version = ?`

	result, err := s.db.db.ExecContext(ctx, query,
		string(exec.Status), nullableTime(exec.CompletedAt), exec.FilesFound, exec.FilesProcessed,
		exec.ResolvedPath, exec.ResolvedFilename, exec.Duration.Milliseconds(), exec.RetryCount,
		exec.ErrorMessage, string(exec.ErrorCategory),
		exec.ID, exec.Version)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", exec.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	exec.Version++
	return nil
}

// GetByID fetches one execution, or nil when it does not exist.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := s.db.db.QueryRowContext(ctx, selectExecution+` WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}
	return &exec, nil
}

// ListByConfiguration returns the most recent executions for a
// configuration, newest first.
func (s *ExecutionStore) ListByConfiguration(ctx context.Context, configurationID string, limit int) ([]models.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.db.QueryContext(ctx,
		selectExecution+` WHERE configuration_id = ? ORDER BY started_at DESC LIMIT ?`,
		configurationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for configuration %s: %w", configurationID, err)
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}

// LatestForConfiguration returns the most recent execution for a
// configuration, or nil when it has never run.
func (s *ExecutionStore) LatestForConfiguration(ctx context.Context, configurationID string) (*models.Execution, error) {
	executions, err := s.ListByConfiguration(ctx, configurationID, 1)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, nil
	}
	return &executions[0], nil
}

const selectExecution = `SELECT id, configuration_id, client_id, status, triggered_by, reference_instant,
	started_at, completed_at, files_found, files_processed, resolved_path, resolved_filename,
	duration_ms, retry_count, error_message, error_category, version
	FROM executions`

func scanExecution(row rowScanner) (models.Execution, error) {
	var exec models.Execution
	var status, triggeredBy, errorCategory string
	var completedAt sql.NullTime
	var durationMs int64

	err := row.Scan(&exec.ID, &exec.ConfigurationID, &exec.ClientID, &status, &triggeredBy,
		&exec.ReferenceInstant, &exec.StartedAt, &completedAt, &exec.FilesFound, &exec.FilesProcessed,
		&exec.ResolvedPath, &exec.ResolvedFilename, &durationMs, &exec.RetryCount,
		&exec.ErrorMessage, &errorCategory, &exec.Version)
	if err != nil {
		return models.Execution{}, err
	}

	exec.Status = models.ExecutionStatus(status)
	exec.TriggeredBy = models.TriggerSource(triggeredBy)
	exec.ErrorCategory = models.ErrorCategory(errorCategory)
	exec.Duration = time.Duration(durationMs) * time.Millisecond
	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	return exec, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
