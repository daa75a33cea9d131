package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/gofilestore/internal/config"
)

func TestInitConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "gofilestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: /data\nstore:\n  type: memory\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOFILESTORE_WORKERS=8\n"), 0o644))
	t.Setenv("GOFILESTORE_STORE_TYPE", "sqlite")
	t.Setenv("GOFILESTORE_STORE_SQLITE_PATH", "/tmp/records.db")
	t.Cleanup(func() { os.Unsetenv("GOFILESTORE_WORKERS") })

	require.NoError(t, initConfig(path))

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Root)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "/tmp/records.db", cfg.Store.SQLite.Path)
	assert.Equal(t, 8, cfg.Workers)
}

func TestInitConfig_InvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: [unclosed\n"), 0o644))

	assert.Error(t, initConfig(path))
}
