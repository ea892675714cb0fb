package config

import (
	"os"
	"path/filepath"
	"testing"

	"filesentry/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	assert.Equal(t, DefaultLogLevel, cfg.LogConfig.LogLevel)
	assert.Equal(t, DefaultSchedulerTickSeconds, cfg.SchedulerConfig.TickSeconds)
	assert.Equal(t, DefaultSchedulerRetentionDays, cfg.SchedulerConfig.LedgerRetentionDays)
	assert.Equal(t, DefaultIntakeSourcesFile, cfg.IntakeConfig.SourcesFile)
	assert.Equal(t, DefaultStorageCompressionCodec, cfg.StorageConfig.CompressionCodec)
	assert.True(t, cfg.MetricsConfig.Enabled)

	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
log_config:
  log_level: debug
scheduler_config:
  tick_seconds: 30
  ledger_retention_days: 7
intake_config:
  sources_file: /etc/filesentry/sources.yaml
`)

	cfg, err := LoadGlobalConfig(path, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	assert.Equal(t, 30, cfg.SchedulerConfig.TickSeconds)
	assert.Equal(t, 7, cfg.SchedulerConfig.LedgerRetentionDays)
	assert.Equal(t, "/etc/filesentry/sources.yaml", cfg.IntakeConfig.SourcesFile)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultStorageParquetBasePath, cfg.StorageConfig.ParquetBasePath)
}

func TestLoadGlobalConfig_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json",
		`{"metrics_config": {"enabled": false, "listen_addr": ":9100"}}`)

	cfg, err := LoadGlobalConfig(path, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, cfg.MetricsConfig.Enabled)
	assert.Equal(t, ":9100", cfg.MetricsConfig.ListenAddr)
}

func TestLoadGlobalConfig_MalformedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "log_config: [not a map")

	_, err := LoadGlobalConfig(path, zerolog.Nop())
	require.Error(t, err)
}

func TestValidateConfig_RejectsBadValues(t *testing.T) {
	cfg := NewDefaultGlobalConfig()
	cfg.LogConfig.LogLevel = "loud"
	require.Error(t, ValidateConfig(cfg))

	cfg = NewDefaultGlobalConfig()
	cfg.SchedulerConfig.TickSeconds = -5
	require.Error(t, ValidateConfig(cfg))

	cfg = NewDefaultGlobalConfig()
	cfg.StorageConfig.CompressionCodec = "lz77"
	require.Error(t, ValidateConfig(cfg))
}

func TestValidateConfiguration(t *testing.T) {
	valid := models.Configuration{
		ID:              "cfg-1",
		ClientID:        "client-a",
		Name:            "daily-report",
		Protocol:        models.ProtocolHTTPS,
		PathPattern:     "https://files.example.com/reports/{yyyy}/{mm}",
		FilenamePattern: "report-{yyyy}{mm}{dd}.csv",
		CronExpression:  "0 9 * * *",
		Timezone:        "Europe/Berlin",
		Active:          true,
	}
	require.NoError(t, ValidateConfiguration(&valid))

	badCron := valid
	badCron.CronExpression = "every five minutes"
	err := ValidateConfiguration(&badCron)
	require.Error(t, err)
	assert.Equal(t, models.CategoryValidation, models.CategoryOf(err))

	badToken := valid
	badToken.FilenamePattern = "report-{year}.csv"
	require.Error(t, ValidateConfiguration(&badToken))

	badZone := valid
	badZone.Timezone = "Mars/Olympus_Mons"
	require.Error(t, ValidateConfiguration(&badZone))

	badProtocol := valid
	badProtocol.Protocol = "gopher"
	require.Error(t, ValidateConfiguration(&badProtocol))
}

func TestGetConfigPath_FlagAndEnv(t *testing.T) {
	dir := t.TempDir()
	flagPath := writeFile(t, dir, "custom.yaml", "")
	envPath := writeFile(t, dir, "env.yaml", "")

	assert.Equal(t, flagPath, GetConfigPath(flagPath))

	t.Setenv("FILESENTRY_CONFIG_PATH", envPath)
	assert.Equal(t, envPath, GetConfigPath(""))

	t.Setenv("FILESENTRY_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	assert.NotEqual(t, filepath.Join(dir, "missing.yaml"), GetConfigPath(""))
}
