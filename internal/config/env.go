package config

import (
	"strings"
)

const EnvPrefix = "PATHWATCH_"

var envKeys = map[string]string{
	"PATHWATCH_STRATEGY":        "watcher.strategy",
	"PATHWATCH_CASE_COMPARISON": "watcher.case-comparison",
	"PATHWATCH_LOG_LEVEL":       "log.level",
	"PATHWATCH_ADDR":            "serve.addr",
	"PATHWATCH_ALLOWED_ORIGINS": "serve.allowed-origins",
}

// EnvOverrides maps PATHWATCH_* variables from environ (os.Environ form) to
// setting overrides. Empty values are ignored.
func EnvOverrides(environ []string) map[string]any {
	overrides := map[string]any{}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key, known := envKeys[name]
		if !known || strings.TrimSpace(value) == "" {
			continue
		}
		overrides[key] = value
	}
	return overrides
}

// MergeOverrides returns a new map where later maps win.
func MergeOverrides(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for _, layer := range layers {
		for key, value := range layer {
			merged[key] = value
		}
	}
	return merged
}
