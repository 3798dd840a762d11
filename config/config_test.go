package config

import (
	"testing"

	"github.com/lambda-feedback/hotreload/util/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := conf.Parse[Config](conf.ParseOptions{
		Defaults: DefaultConfig,
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "flutter", cfg.Flutter.Binary)
	assert.Equal(t, ".", cfg.Flutter.ProjectPath)
	assert.Equal(t, 1000, cfg.Flutter.Debounce)
	assert.Equal(t, []string{"build"}, cfg.Watch.IgnoreDirs)
	assert.False(t, cfg.Watch.ForcePolling)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOTRELOAD_FLUTTER__DEVICE_ID", "chrome")
	t.Setenv("HOTRELOAD_WATCH__FORCE_POLLING", "true")

	cfg, err := conf.Parse[Config](conf.ParseOptions{
		Defaults:  DefaultConfig,
		EnvPrefix: EnvPrefix,
	})
	require.NoError(t, err)

	assert.Equal(t, "chrome", cfg.Flutter.DeviceID)
	assert.True(t, cfg.Watch.ForcePolling)
}
