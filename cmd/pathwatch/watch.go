package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"pathwatch/internal/config"
	"pathwatch/internal/logging"
	"pathwatch/internal/watcher"
)

// watchRegistrar is the subset of *watcher.PathWatcher the watch loop needs.
type watchRegistrar interface {
	WatchFile(pattern string, handler watcher.Handler) error
	WatchFolder(pattern string, handler watcher.Handler) error
	Unwatch(handler watcher.Handler) error
}

type watchFlags struct {
	ConfigPath string
	Folder     bool
	Format     string
	LogLevel   string
	Strategy   string
	Patterns   []string
}

func parseWatchFlags(args []string, errOut io.Writer) (watchFlags, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var parsed watchFlags
	fs.StringVar(&parsed.ConfigPath, "config", "", "settings file (.toml, .yaml)")
	fs.BoolVar(&parsed.Folder, "folder", false, "watch the patterns as folders")
	fs.StringVar(&parsed.Format, "format", "text", "output format: text or json")
	fs.StringVar(&parsed.LogLevel, "log-level", "", "log level: debug, info, warning, error")
	fs.StringVar(&parsed.Strategy, "strategy", "", "handle strategy: optimized or non-locking")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return watchFlags{}, err
		}
		return watchFlags{}, usageError("%v", err)
	}
	if parsed.Format != "text" && parsed.Format != "json" {
		return watchFlags{}, usageError("unknown format %q", parsed.Format)
	}
	patterns, err := absolutePatterns(fs.Args())
	if err != nil {
		return watchFlags{}, err
	}
	parsed.Patterns = patterns
	return parsed, nil
}

// absolutePatterns roots command line patterns at the working directory.
func absolutePatterns(patterns []string) ([]string, error) {
	resolved := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		if filepath.IsAbs(raw) {
			resolved = append(resolved, raw)
			continue
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			return nil, usageError("resolve pattern %q: %v", raw, err)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

func runWatch(args []string, s streams) int {
	parsed, err := parseWatchFlags(args, s.Stderr)
	if err != nil {
		return reportError(s.Stderr, err)
	}

	overrides := map[string]any{}
	setOverride(overrides, "log.level", parsed.LogLevel)
	setOverride(overrides, "watcher.strategy", parsed.Strategy)
	settings, err := loadSettings(parsed.ConfigPath, s.Environ, overrides)
	if err != nil {
		return reportError(s.Stderr, err)
	}

	entries := append([]config.WatchEntry(nil), settings.Watches...)
	kind := config.KindFile
	if parsed.Folder {
		kind = config.KindFolder
	}
	for _, raw := range parsed.Patterns {
		entries = append(entries, config.WatchEntry{Pattern: raw, Kind: kind})
	}
	if len(entries) == 0 {
		return reportError(s.Stderr, usageError("watch needs at least one pattern"))
	}

	logger := newLogger(settings, s.Stderr)
	pathWatcher, err := openWatcher(settings, logger, nil)
	if err != nil {
		return reportError(s.Stderr, err)
	}
	defer pathWatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(logger, cancel, signalCh)
	defer stopSignals()

	printer := newNotificationPrinter(s.Stdout, parsed.Format)
	if err := watchUntilDone(ctx, pathWatcher, entries, printer, logger); err != nil {
		return reportError(s.Stderr, err)
	}
	return exitOK
}

// watchUntilDone registers every entry under one handler and blocks until
// ctx ends. A failed registration undoes the ones before it.
func watchUntilDone(ctx context.Context, watches watchRegistrar, entries []config.WatchEntry, printer *notificationPrinter, logger *logging.Logger) error {
	handler := watcher.NewHandler(printer.Print)
	registered := 0
	for _, entry := range entries {
		var err error
		if entry.KindOrDefault() == config.KindFolder {
			err = watches.WatchFolder(entry.Pattern, handler)
		} else {
			err = watches.WatchFile(entry.Pattern, handler)
		}
		if err != nil {
			if registered > 0 {
				_ = watches.Unwatch(handler)
			}
			return fmt.Errorf("watch %s: %w", entry.Pattern, err)
		}
		registered++
	}
	logger.Info("watching", map[string]string{
		"patterns": strconv.Itoa(registered),
	})

	<-ctx.Done()
	return watches.Unwatch(handler)
}

type notificationPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	format  string
	encoder *json.Encoder
}

func newNotificationPrinter(out io.Writer, format string) *notificationPrinter {
	return &notificationPrinter{
		out:     out,
		format:  format,
		encoder: json.NewEncoder(out),
	}
}

func (p *notificationPrinter) Print(notification watcher.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		_ = p.encoder.Encode(notification)
		return
	}
	line := fmt.Sprintf("%-8s %s", notification.Change, notification.Path)
	switch {
	case notification.NewPath != "":
		line += " -> " + notification.NewPath
	case notification.OldPath != "":
		line += " <- " + notification.OldPath
	}
	fmt.Fprintln(p.out, line)
}

func reportError(errOut io.Writer, err error) int {
	code := exitCodeFor(err)
	if code != exitOK {
		fmt.Fprintf(errOut, "pathwatch: %v\n", err)
	}
	return code
}
