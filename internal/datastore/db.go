// Package datastore persists configurations, executions, the discovery
// ledger and processed-file records in SQLite, and archives intake history
// to parquet. Each entity gets its own typed table; there is no shared
// container with a discriminator column.
package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection shared by the entity stores.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDB opens (creating if necessary) the SQLite database at the given path
// and ensures the schema exists.
func NewDB(dataSourceName string, logger zerolog.Logger) (*DB, error) {
	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// The ledger relies on the uniqueness constraint under concurrent
	// inserts; serialize access through a single connection.
	dbInstance.SetMaxOpenConns(1)

	db := &DB{
		db:     dbInstance,
		logger: logger.With().Str("component", "DB").Logger(),
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	db.logger.Info().Str("db_path", dataSourceName).Msg("Database initialized and schema verified")
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InitSchema creates the entity tables if they do not already exist.
func (d *DB) InitSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS configurations (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			name TEXT NOT NULL,
			protocol TEXT NOT NULL,
			path_pattern TEXT NOT NULL,
			filename_pattern TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			timezone TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			auth_kind TEXT NOT NULL DEFAULT 'none',
			credential_ref TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			modified_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			modified_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			configuration_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			status TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			reference_instant DATETIME NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			files_found INTEGER NOT NULL DEFAULT 0,
			files_processed INTEGER NOT NULL DEFAULT 0,
			resolved_path TEXT NOT NULL DEFAULT '',
			resolved_filename TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			error_category TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_configuration
			ON executions(configuration_id, started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS discovered_files (
			id TEXT PRIMARY KEY,
			configuration_id TEXT NOT NULL,
			execution_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			file_url TEXT NOT NULL,
			filename TEXT NOT NULL,
			size INTEGER,
			last_modified DATETIME,
			discovered_at DATETIME NOT NULL,
			discovery_day TEXT NOT NULL,
			status TEXT NOT NULL,
			UNIQUE(configuration_id, filename, discovery_day)
		)`,
		`CREATE TABLE IF NOT EXISTS processed_files (
			id TEXT PRIMARY KEY,
			configuration_id TEXT NOT NULL,
			execution_id TEXT NOT NULL,
			discovered_file_id TEXT NOT NULL UNIQUE,
			client_id TEXT NOT NULL,
			downloaded_size INTEGER NOT NULL,
			checksum_algorithm TEXT NOT NULL,
			checksum TEXT NOT NULL,
			processed_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			d.logger.Error().Err(err).Msg("DB: Failed to initialize schema")
			return err
		}
	}
	return nil
}
