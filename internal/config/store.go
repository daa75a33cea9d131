package config

// StoreConfig selects the record store backing the query interface
type StoreConfig struct {
	Type   string            `mapstructure:"type"   yaml:"type"`
	SQLite StoreSQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// StoreSQLiteConfig holds SQLite-specific configuration
type StoreSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AgentConfig controls the long-running agent
type AgentConfig struct {
	RefreshInterval string `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}
