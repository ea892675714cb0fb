package datastore

import (
	"context"
	"fmt"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// ProcessedFileStore persists the immutable records created once a
// discovered file's bytes have been fetched and checksummed.
type ProcessedFileStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewProcessedFileStore creates a processed-file store on the shared DB.
func NewProcessedFileStore(db *DB, logger zerolog.Logger) *ProcessedFileStore {
	return &ProcessedFileStore{
		db:     db,
		logger: logger.With().Str("component", "ProcessedFileStore").Logger(),
	}
}

// Insert persists one processed-file record. The discovered_file_id column
// is unique: a file's bytes are checksummed at most once.
func (s *ProcessedFileStore) Insert(ctx context.Context, record *models.ProcessedFileRecord) error {
	query := `INSERT INTO processed_files
		(id, configuration_id, execution_id, discovered_file_id, client_id,
		 downloaded_size, checksum_algorithm, checksum, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.db.ExecContext(ctx, query,
		record.ID, record.ConfigurationID, record.ExecutionID, record.DiscoveredFileID, record.ClientID,
		record.DownloadedSize, record.ChecksumAlgorithm, record.Checksum, record.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert processed file record %s: %w", record.ID, err)
	}
	return nil
}

// ListByExecution returns the processed-file records created by one
// execution, oldest first.
func (s *ProcessedFileStore) ListByExecution(ctx context.Context, executionID string) ([]models.ProcessedFileRecord, error) {
	query := `SELECT id, configuration_id, execution_id, discovered_file_id, client_id,
		downloaded_size, checksum_algorithm, checksum, processed_at
		FROM processed_files WHERE execution_id = ? ORDER BY processed_at`

	rows, err := s.db.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed files for execution %s: %w", executionID, err)
	}
	defer rows.Close()

	var records []models.ProcessedFileRecord
	for rows.Next() {
		var record models.ProcessedFileRecord
		if err := rows.Scan(&record.ID, &record.ConfigurationID, &record.ExecutionID,
			&record.DiscoveredFileID, &record.ClientID, &record.DownloadedSize,
			&record.ChecksumAlgorithm, &record.Checksum, &record.ProcessedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
