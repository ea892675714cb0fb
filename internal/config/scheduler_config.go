package config

// SchedulerConfig defines configuration for the tick loop and the
// operational SQLite store.
type SchedulerConfig struct {
	TickSeconds         int    `json:"tick_seconds,omitempty" yaml:"tick_seconds,omitempty" validate:"omitempty,gte=1"`
	LedgerRetentionDays int    `json:"ledger_retention_days,omitempty" yaml:"ledger_retention_days,omitempty" validate:"omitempty,gte=1"`
	SQLiteDBPath        string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickSeconds:         DefaultSchedulerTickSeconds,
		LedgerRetentionDays: DefaultSchedulerRetentionDays,
		SQLiteDBPath:        DefaultSchedulerSQLiteDBPath,
	}
}
