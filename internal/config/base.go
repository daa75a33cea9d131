package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type BaseConfig struct {
	Root             string   `mapstructure:"root"               yaml:"root"`
	ReadOnly         bool     `mapstructure:"read_only"          yaml:"read_only"`
	MaxDepth         int      `mapstructure:"max_depth"          yaml:"max_depth"`
	TrackFiles       []string `mapstructure:"track_files"        yaml:"track_files"`
	SidecarName      string   `mapstructure:"sidecar_name"       yaml:"sidecar_name"`
	ContentSizeLimit int64    `mapstructure:"content_size_limit" yaml:"content_size_limit"`
	IncludeOrphans   bool     `mapstructure:"include_orphans"    yaml:"include_orphans"`
	Workers          int      `mapstructure:"workers"            yaml:"workers"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	Agent AgentConfig `mapstructure:"agent" yaml:"agent"`
	Log   LogConfig   `mapstructure:"log"   yaml:"log"`
}

func LoadConfig() (*BaseConfig, error) {
	cfg := &BaseConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (cfg *BaseConfig) Validate() error {
	if cfg.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	for _, pattern := range cfg.TrackFiles {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid track_files pattern '%s': %w", pattern, err)
		}
	}
	switch cfg.Store.Type {
	case "memory":
	case "sqlite":
		if cfg.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for store type 'sqlite'")
		}
	default:
		return fmt.Errorf("unknown store type '%s'", cfg.Store.Type)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	return nil
}

// RefreshIntervalDuration falls back to five minutes on unparsable values
func (cfg *AgentConfig) RefreshIntervalDuration() time.Duration {
	interval, err := time.ParseDuration(cfg.RefreshInterval)
	if err != nil || interval <= 0 {
		return 5 * time.Minute
	}
	return interval
}

func (cfg *AgentConfig) ShutdownTimeoutDuration() time.Duration {
	timeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		return 60 * time.Second
	}
	return timeout
}
