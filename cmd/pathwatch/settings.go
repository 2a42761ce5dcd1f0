package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"pathwatch/internal/config"
	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
	"pathwatch/internal/pattern"
	"pathwatch/internal/watcher"
)

// loadSettings layers the config file, PATHWATCH_* variables and flag
// overrides, then validates the result for this platform's path style.
func loadSettings(path string, environ []string, flagOverrides map[string]any) (config.Settings, error) {
	overrides := config.MergeOverrides(config.EnvOverrides(environ), flagOverrides)
	settings, err := config.Load(path, overrides)
	if err != nil {
		return config.Settings{}, err
	}
	if err := settings.Validate(pathutil.NativeStyle()); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// exitCodeFor maps flag, settings and pattern errors to exitUsage and
// everything else to exitFailure.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, config.ErrInvalidSettings), errors.Is(err, errUsage),
		errors.Is(err, pattern.ErrInvalidPattern), errors.Is(err, pathutil.ErrInvalidPath),
		errors.Is(err, watcher.ErrNotRooted), errors.Is(err, watcher.ErrFolderAsFile):
		return exitUsage
	default:
		return exitFailure
	}
}

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func newLogger(settings config.Settings, output io.Writer) *logging.Logger {
	level, ok := logging.ParseLevel(settings.Log.Level)
	if !ok {
		level = logging.LevelInfo
	}
	return logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, output)
}

func openWatcher(settings config.Settings, logger *logging.Logger, registry *metrics.Registry) (*watcher.PathWatcher, error) {
	options := settings.WatcherOptions()
	options.Logger = logger
	options.Metrics = registry
	return watcher.New(options)
}

// setOverride records a flag value under key when the flag was given.
func setOverride(overrides map[string]any, key, value string) {
	if value != "" {
		overrides[key] = value
	}
}
