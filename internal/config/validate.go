package config

import (
	"errors"
	"fmt"

	"pathwatch/internal/logging"
	"pathwatch/internal/pathutil"
	"pathwatch/internal/pattern"
	"pathwatch/internal/watcher"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Validate reports every problem at once. Watch patterns are checked with
// the given path style.
func (s Settings) Validate(style pathutil.Style) error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if _, ok := watcher.ParsePoolStrategy(s.Watcher.Strategy); !ok {
		add("watcher.strategy: unknown value %q", s.Watcher.Strategy)
	}
	cc, ok := pathutil.ParseCaseComparison(s.Watcher.CaseComparison)
	if !ok {
		add("watcher.case-comparison: unknown value %q", s.Watcher.CaseComparison)
	}
	if _, ok := logging.ParseLevel(s.Log.Level); !ok {
		add("log.level: unknown value %q", s.Log.Level)
	}

	for index, entry := range s.Watches {
		switch entry.Kind {
		case "", KindFile, KindFolder:
		default:
			add("watches[%d].kind: unknown value %q", index, entry.Kind)
		}
		if entry.Pattern == "" {
			add("watches[%d].pattern: required", index)
			continue
		}
		compiled, err := pattern.Compile(entry.Pattern, style, cc)
		if err != nil {
			add("watches[%d].pattern: %w", index, err)
			continue
		}
		if !compiled.IsRooted() {
			add("watches[%d].pattern: %q is not rooted", index, entry.Pattern)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(problems...))
}

// WatcherOptions converts validated settings into watcher options.
func (s Settings) WatcherOptions() watcher.Options {
	strategy, _ := watcher.ParsePoolStrategy(s.Watcher.Strategy)
	cc, _ := pathutil.ParseCaseComparison(s.Watcher.CaseComparison)
	return watcher.Options{
		Strategy:       strategy,
		CaseComparison: cc,
	}
}

// KindOrDefault returns the entry kind with the default applied.
func (e WatchEntry) KindOrDefault() string {
	if e.Kind == "" {
		return KindFile
	}
	return e.Kind
}
