package config

import "github.com/spf13/viper"

func GetDefault() BaseConfig {
	return BaseConfig{
		Root:             ".",
		ReadOnly:         true,
		MaxDepth:         -1,
		TrackFiles:       []string{},
		SidecarName:      "FileStore.json",
		ContentSizeLimit: 1 << 20,
		IncludeOrphans:   false,
		Workers:          4,

		Store: StoreConfig{
			Type: "memory",
			SQLite: StoreSQLiteConfig{
				Path: "",
			},
		},

		Agent: AgentConfig{
			RefreshInterval: "5m",
			ShutdownTimeout: "10s",
		},

		Log: LogConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			Output:     "stdout",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
	}
}

func setDefaults() {
	defaults := GetDefault()

	viper.SetDefault("root", defaults.Root)
	viper.SetDefault("read_only", defaults.ReadOnly)
	viper.SetDefault("max_depth", defaults.MaxDepth)
	viper.SetDefault("track_files", defaults.TrackFiles)
	viper.SetDefault("sidecar_name", defaults.SidecarName)
	viper.SetDefault("content_size_limit", defaults.ContentSizeLimit)
	viper.SetDefault("include_orphans", defaults.IncludeOrphans)
	viper.SetDefault("workers", defaults.Workers)

	viper.SetDefault("store.type", defaults.Store.Type)
	viper.SetDefault("store.sqlite.path", defaults.Store.SQLite.Path)

	viper.SetDefault("agent.refresh_interval", defaults.Agent.RefreshInterval)
	viper.SetDefault("agent.shutdown_timeout", defaults.Agent.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.output", defaults.Log.Output)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)
}
