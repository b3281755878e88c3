// Package config provides configuration management for searchlink using Viper.
package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchlink/searchlink/errors"
)

// Config holds all searchlink configuration.
type Config struct {
	Port int `mapstructure:"port"`

	// Source is the MongoDB connection URI.
	Source string `mapstructure:"source"`
	// Database is the replicated MongoDB database.
	Database string `mapstructure:"database"`
	// Elasticsearch is the search index base URL.
	Elasticsearch string `mapstructure:"elasticsearch"`

	// Mappings is the path to the collection mapping file.
	Mappings string `mapstructure:"mappings"`

	// BulkSize is the number of documents per bulk request.
	BulkSize int `mapstructure:"bulk-size"`

	// IncludeCollections restricts replication to the listed collections.
	IncludeCollections []string `mapstructure:"include-collections"`
	// ExcludeCollections removes the listed collections from replication.
	ExcludeCollections []string `mapstructure:"exclude-collections"`

	Log LogConfig `mapstructure:",squash"`

	Checkpoint CheckpointConfig `mapstructure:",squash"`

	// hidden startup flags
	ResetState bool `mapstructure:"reset-state"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"log-level"`
	JSON    bool   `mapstructure:"log-json"`
	NoColor bool   `mapstructure:"log-no-color"`
}

// CheckpointConfig holds checkpoint persistence configuration.
type CheckpointConfig struct {
	// Mode selects resume-token persistence: "file" or "collection".
	Mode string `mapstructure:"checkpoint-mode"`
	// Dir is the directory for file-mode resume tokens and the progress file.
	Dir string `mapstructure:"checkpoint-dir"`
	// Collection is the MongoDB collection for collection-mode resume tokens.
	Collection string `mapstructure:"checkpoint-collection"`
	// ProgressFile is the bootstrap progress file name within Dir.
	ProgressFile string `mapstructure:"progress-file"`
}

// Load initializes Viper and returns the decoded Config.
func Load(cmd *cobra.Command) (*Config, error) {
	viper.SetEnvPrefix("SLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cmd.PersistentFlags() != nil {
		_ = viper.BindPFlags(cmd.PersistentFlags())
	}

	if cmd.Flags() != nil {
		_ = viper.BindPFlags(cmd.Flags())
	}

	bindEnvVars()

	var cfg Config

	err := viper.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BulkSize == 0 {
		cfg.BulkSize = DefaultBulkSize
	}

	if cfg.Checkpoint.Mode == "" {
		cfg.Checkpoint.Mode = CheckpointModeFile
	}

	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = DefaultCheckpointDir
	}

	if cfg.Checkpoint.Collection == "" {
		cfg.Checkpoint.Collection = DefaultCheckpointCollection
	}

	if cfg.Checkpoint.ProgressFile == "" {
		cfg.Checkpoint.ProgressFile = DefaultProgressFile
	}
}

func bindEnvVars() {
	_ = viper.BindEnv("port", "SLINK_PORT")

	_ = viper.BindEnv("source", "SLINK_SOURCE_URI")
	_ = viper.BindEnv("database", "SLINK_DATABASE")
	_ = viper.BindEnv("elasticsearch", "SLINK_ELASTICSEARCH_URL")

	_ = viper.BindEnv("mappings", "SLINK_MAPPINGS")
	_ = viper.BindEnv("bulk-size", "SLINK_BULK_SIZE")

	_ = viper.BindEnv("include-collections", "SLINK_INCLUDE_COLLECTIONS")
	_ = viper.BindEnv("exclude-collections", "SLINK_EXCLUDE_COLLECTIONS")

	_ = viper.BindEnv("log-level", "SLINK_LOG_LEVEL")
	_ = viper.BindEnv("log-json", "SLINK_LOG_JSON")
	_ = viper.BindEnv("log-no-color", "SLINK_LOG_NO_COLOR", "SLINK_NO_COLOR")

	_ = viper.BindEnv("checkpoint-mode", "SLINK_CHECKPOINT_MODE")
	_ = viper.BindEnv("checkpoint-dir", "SLINK_CHECKPOINT_DIR")
	_ = viper.BindEnv("checkpoint-collection", "SLINK_CHECKPOINT_COLLECTION")
	_ = viper.BindEnv("progress-file", "SLINK_PROGRESS_FILE")
}
