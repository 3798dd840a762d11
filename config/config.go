package config

import (
	"github.com/lambda-feedback/hotreload/internal/execution/supervisor"
	"github.com/lambda-feedback/hotreload/internal/watcher"
	"github.com/lambda-feedback/hotreload/util/conf"
)

// EnvPrefix is the prefix of env vars overriding the configuration,
// e.g. HOTRELOAD_FLUTTER__DEVICE_ID.
const EnvPrefix = "HOTRELOAD_"

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Flutter describes how flutter is launched and reloaded
	Flutter supervisor.Config `conf:"flutter"`

	// Watch is the file watcher configuration
	Watch WatchConfig `conf:"watch"`
}

type WatchConfig struct {
	// IgnoreDirs are directory names that are not watched
	IgnoreDirs []string `conf:"ignore_dirs"`

	// ForcePolling disables native file system notifications
	ForcePolling bool `conf:"force_polling"`
}

var DefaultConfig = merge(
	conf.DefaultConfig{
		"log_level":  "warn",
		"log_format": "development",
	},
	conf.MergeDefaults("flutter", conf.DefaultConfig{
		"binary":       supervisor.DefaultBinary,
		"project_path": ".",
		"debounce":     supervisor.DefaultDebounce,
	}),
	conf.MergeDefaults("watch", conf.DefaultConfig{
		"ignore_dirs":   watcher.DefaultIgnoreDirs,
		"force_polling": false,
	}),
)

// CliMap maps cli flag names to configuration keys.
var CliMap = map[string]string{
	"log-level":  "log_level",
	"log-format": "log_format",
	"device-id":  "flutter.device_id",
	"flavor":     "flutter.flavor",
	"release":    "flutter.release",
	"profile":    "flutter.profile",
	"debounce":   "flutter.debounce",
	"poll":       "watch.force_polling",
}

func merge(maps ...conf.DefaultConfig) conf.DefaultConfig {
	merged := make(conf.DefaultConfig)
	for _, m := range maps {
		for key, val := range m {
			merged[key] = val
		}
	}
	return merged
}
