package config

import "github.com/searchlink/searchlink/errors"

// Validate checks the configuration for startup.
func Validate(cfg *Config) error {
	if cfg.Source == "" {
		return errors.New("source URI is not set")
	}

	if cfg.Database == "" {
		return errors.New("database is not set")
	}

	if cfg.Elasticsearch == "" {
		return errors.New("elasticsearch URL is not set")
	}

	if cfg.BulkSize < 1 || cfg.BulkSize > MaxBulkSize {
		return errors.Errorf("bulk-size must be within [1, %d]: %d", MaxBulkSize, cfg.BulkSize)
	}

	switch cfg.Checkpoint.Mode {
	case CheckpointModeFile, CheckpointModeCollection:
	default:
		return errors.Errorf("unknown checkpoint-mode: %q", cfg.Checkpoint.Mode)
	}

	return nil
}
