package config

import (
	"fmt"
	"os"
	"time"

	"filesentry/internal/models"

	"gopkg.in/yaml.v3"
)

// sourcesFile is the on-disk shape of the intake source definitions.
type sourcesFile struct {
	Configurations []models.Configuration `yaml:"configurations"`
}

// LoadSources reads the intake configurations from the YAML sources file.
// Every entry is validated and duplicate IDs are rejected: a bad entry
// fails the whole load, so a half-applied sources file can never reach the
// scheduler.
func LoadSources(path string) ([]models.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(file.Configurations))
	for i := range file.Configurations {
		cfg := &file.Configurations[i]
		if err := ValidateConfiguration(cfg); err != nil {
			return nil, fmt.Errorf("sources file %s entry %d: %w", path, i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, models.NewValidationError(cfg.ID, fmt.Sprintf("duplicate configuration id in sources file %s", path))
		}
		seen[cfg.ID] = struct{}{}
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = now
		}
		cfg.ModifiedAt = now
	}
	return file.Configurations, nil
}
