package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Run("fills in reference defaults when nothing is set", func(t *testing.T) {
		cfg, err := Load(viper.New(), "")

		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, ".", cfg.DataDir)
		assert.Equal(t, 1000, cfg.TickMS)
		assert.Empty(t, cfg.RedisURL)
	})
}

func TestLoadEnvOverride(t *testing.T) {
	t.Run("env vars under the SIM_ prefix outrank defaults", func(t *testing.T) {
		os.Setenv("SIM_PORT", "9090")
		os.Setenv("SIM_TICK_MS", "250")
		defer os.Unsetenv("SIM_PORT")
		defer os.Unsetenv("SIM_TICK_MS")

		cfg, err := Load(viper.New(), "")

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, 250, cfg.TickMS)
	})
}

func TestLoadYAMLFile(t *testing.T) {
	t.Run("reads a config file when configPath is given", func(t *testing.T) {
		dir := t.TempDir()
		path := dir + "/config.yaml"
		require.NoError(t, os.WriteFile(path, []byte("port: 9999\ndata_dir: /data\n"), 0o644))

		cfg, err := Load(viper.New(), path)

		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Port)
		assert.Equal(t, "/data", cfg.DataDir)
	})

	t.Run("missing default config file is not an error", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		defer os.Chdir(wd)

		_, err = Load(viper.New(), "")
		assert.NoError(t, err)
	})
}
