package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
)

// ConfigurationStore persists client configurations. Writes use the version
// column as an optimistic-concurrency token.
type ConfigurationStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewConfigurationStore creates a configuration store on the shared DB.
func NewConfigurationStore(db *DB, logger zerolog.Logger) *ConfigurationStore {
	return &ConfigurationStore{
		db:     db,
		logger: logger.With().Str("component", "ConfigurationStore").Logger(),
	}
}

// Upsert inserts a new configuration or updates an existing one, bumping the
// version. Used when the intake sources file is (re)loaded.
func (s *ConfigurationStore) Upsert(ctx context.Context, cfg *models.Configuration) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.ModifiedAt = now

	query := `INSERT INTO configurations
		(id, client_id, name, protocol, path_pattern, filename_pattern, cron_expression,
		 timezone, active, auth_kind, credential_ref, created_by, modified_by, created_at, modified_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			protocol = excluded.protocol,
			path_pattern = excluded.path_pattern,
			filename_pattern = excluded.filename_pattern,
			cron_expression = excluded.cron_expression,
			timezone = excluded.timezone,
			active = excluded.active,
			auth_kind = excluded.auth_kind,
			credential_ref = excluded.credential_ref,
			modified_by = excluded.modified_by,
			modified_at = excluded.modified_at,
			version = configurations.version + 1`

	_, err := s.db.db.ExecContext(ctx, query,
		cfg.ID, cfg.ClientID, cfg.Name, string(cfg.Protocol), cfg.PathPattern, cfg.FilenamePattern,
		cfg.CronExpression, cfg.Timezone, cfg.Active, string(cfg.Auth.Kind), cfg.Auth.CredentialRef,
		cfg.CreatedBy, cfg.ModifiedBy, cfg.CreatedAt, cfg.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert configuration %s: %w", cfg.ID, err)
	}
	return nil
}

// ListActive returns every active configuration, the scheduler's working set.
func (s *ConfigurationStore) ListActive(ctx context.Context) ([]models.Configuration, error) {
	query := `SELECT id, client_id, name, protocol, path_pattern, filename_pattern, cron_expression,
		timezone, active, auth_kind, credential_ref, created_by, modified_by, created_at, modified_at, version
		FROM configurations WHERE active = 1 ORDER BY id`

	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active configurations: %w", err)
	}
	defer rows.Close()

	var configs []models.Configuration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// GetByID fetches one configuration, active or not.
func (s *ConfigurationStore) GetByID(ctx context.Context, id string) (*models.Configuration, error) {
	query := `SELECT id, client_id, name, protocol, path_pattern, filename_pattern, cron_expression,
		timezone, active, auth_kind, credential_ref, created_by, modified_by, created_at, modified_at, version
		FROM configurations WHERE id = ?`

	row := s.db.db.QueryRowContext(ctx, query, id)
	cfg, err := scanConfiguration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration %s: %w", id, err)
	}
	return &cfg, nil
}

// Deactivate flips the active flag off, guarded by the version token.
// Returns false when the version no longer matches (concurrent modification).
func (s *ConfigurationStore) Deactivate(ctx context.Context, id string, version int64) (bool, error) {
	result, err := s.db.db.ExecContext(ctx,
		`UPDATE configurations SET active = 0, modified_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		time.Now().UTC(), id, version)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate configuration %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(row rowScanner) (models.Configuration, error) {
	var cfg models.Configuration
	var protocol, authKind string
	err := row.Scan(&cfg.ID, &cfg.ClientID, &cfg.Name, &protocol, &cfg.PathPattern, &cfg.FilenamePattern,
		&cfg.CronExpression, &cfg.Timezone, &cfg.Active, &authKind, &cfg.Auth.CredentialRef,
		&cfg.CreatedBy, &cfg.ModifiedBy, &cfg.CreatedAt, &cfg.ModifiedAt, &cfg.Version)
	if err != nil {
		return models.Configuration{}, err
	}
	cfg.Protocol = models.ProtocolKind(protocol)
	cfg.Auth.Kind = models.AuthKind(authKind)
	return cfg, nil
}
