package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// DiscoveryLedger is the idempotency store for discovered files. TryInsert
// is the sole dedup boundary in the system: callers never pre-check for
// existence, they attempt the insert and branch on the outcome.
type DiscoveryLedger struct {
	db     *DB
	logger zerolog.Logger
}

// NewDiscoveryLedger creates a ledger on the shared DB.
func NewDiscoveryLedger(db *DB, logger zerolog.Logger) *DiscoveryLedger {
	return &DiscoveryLedger{
		db:     db,
		logger: logger.With().Str("component", "DiscoveryLedger").Logger(),
	}
}

// TryInsert atomically inserts the discovered file keyed on
// (configuration_id, filename, discovery_day). It returns true when this
// call created the record and false when the tuple already existed. A
// concurrent duplicate insert is reported as "already exists", never as
// an error, which is what makes overlapping polling cycles safe.
func (l *DiscoveryLedger) TryInsert(ctx context.Context, file *models.DiscoveredFile) (bool, error) {
	query := `INSERT OR IGNORE INTO discovered_files
		(id, configuration_id, execution_id, client_id, file_url, filename,
		 size, last_modified, discovered_at, discovery_day, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := l.db.db.ExecContext(ctx, query,
		file.ID, file.ConfigurationID, file.ExecutionID, file.ClientID, file.FileURL, file.Filename,
		nullableInt64(file.Size), nullableTime(file.LastModified), file.DiscoveredAt, file.DiscoveryDay, string(file.Status))
	if err != nil {
		return false, fmt.Errorf("failed to insert discovered file %s: %w", file.Filename, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	inserted := affected == 1
	if !inserted {
		l.logger.Debug().
			Str("configuration_id", file.ConfigurationID).
			Str("filename", file.Filename).
			Str("discovery_day", file.DiscoveryDay).
			Msg("Discovery already recorded for this day, skipping")
	}
	return inserted, nil
}

// UpdateStatus advances a discovered file's status.
func (l *DiscoveryLedger) UpdateStatus(ctx context.Context, id string, status models.DiscoveryStatus) error {
	result, err := l.db.db.ExecContext(ctx,
		`UPDATE discovered_files SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update discovered file %s status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("discovered file %s not found", id)
	}
	return nil
}

// GetByKey fetches the discovery record for an idempotency tuple, or nil.
func (l *DiscoveryLedger) GetByKey(ctx context.Context, configurationID, filename, discoveryDay string) (*models.DiscoveredFile, error) {
	query := `SELECT id, configuration_id, execution_id, client_id, file_url, filename,
		size, last_modified, discovered_at, discovery_day, status
		FROM discovered_files WHERE configuration_id = ? AND filename = ? AND discovery_day = ?`

	row := l.db.db.QueryRowContext(ctx, query, configurationID, filename, discoveryDay)

	var file models.DiscoveredFile
	var status string
	var size sql.NullInt64
	var lastModified sql.NullTime
	err := row.Scan(&file.ID, &file.ConfigurationID, &file.ExecutionID, &file.ClientID, &file.FileURL,
		&file.Filename, &size, &lastModified, &file.DiscoveredAt, &file.DiscoveryDay, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discovered file: %w", err)
	}

	file.Status = models.DiscoveryStatus(status)
	if size.Valid {
		v := size.Int64
		file.Size = &v
	}
	if lastModified.Valid {
		t := lastModified.Time
		file.LastModified = &t
	}
	return &file, nil
}

// PruneBefore deletes ledger rows whose discovery day is older than the
// cutoff day (exclusive). Returns the number of rows removed.
func (l *DiscoveryLedger) PruneBefore(ctx context.Context, cutoffDay string) (int64, error) {
	result, err := l.db.db.ExecContext(ctx,
		`DELETE FROM discovered_files WHERE discovery_day < ?`, cutoffDay)
	if err != nil {
		return 0, fmt.Errorf("failed to prune discovery ledger: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		l.logger.Info().Int64("removed", removed).Str("cutoff_day", cutoffDay).Msg("Pruned discovery ledger")
	}
	return removed, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
