package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pathwatch/internal/api"
	"pathwatch/internal/config"
	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/watcher"
)

const httpServerShutdownTimeout = 5 * time.Second

type serveFlags struct {
	ConfigPath string
	Addr       string
	LogLevel   string
}

func parseServeFlags(args []string, errOut io.Writer) (serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var parsed serveFlags
	fs.StringVar(&parsed.ConfigPath, "config", "", "settings file (.toml, .yaml)")
	fs.StringVar(&parsed.Addr, "addr", "", "listen address (default from settings)")
	fs.StringVar(&parsed.LogLevel, "log-level", "", "log level: debug, info, warning, error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return serveFlags{}, err
		}
		return serveFlags{}, usageError("%v", err)
	}
	if fs.NArg() > 0 {
		return serveFlags{}, usageError("serve takes no arguments")
	}
	return parsed, nil
}

func runServe(args []string, s streams) int {
	parsed, err := parseServeFlags(args, s.Stderr)
	if err != nil {
		return reportError(s.Stderr, err)
	}
	overrides := map[string]any{}
	setOverride(overrides, "serve.addr", parsed.Addr)
	setOverride(overrides, "log.level", parsed.LogLevel)
	settings, err := loadSettings(parsed.ConfigPath, s.Environ, overrides)
	if err != nil {
		return reportError(s.Stderr, err)
	}

	logger := newLogger(settings, s.Stderr)
	registry := metrics.NewRegistry()
	pathWatcher, err := openWatcher(settings, logger, registry)
	if err != nil {
		return reportError(s.Stderr, err)
	}
	defer pathWatcher.Close()

	if err := watchConfigured(pathWatcher, settings.Watches, logger); err != nil {
		return reportError(s.Stderr, err)
	}

	listener, err := net.Listen("tcp", settings.Serve.Addr)
	if err != nil {
		return reportError(s.Stderr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(logger, cancel, signalCh)
	defer stopSignals()

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, pathWatcher, api.RouteOptions{
		AllowedOrigins: settings.Serve.AllowedOrigins,
		Metrics:        registry,
		Logger:         logger,
	})
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("pathwatch listening", map[string]string{
		"addr": listener.Addr().String(),
	})
	if err := serveUntilDone(ctx, server, listener, logger, httpServerShutdownTimeout); err != nil {
		return reportError(s.Stderr, err)
	}
	return exitOK
}

// watchConfigured logs changes to the watches listed in settings so a server
// started with a config file reports them without a websocket client.
func watchConfigured(watches watchRegistrar, entries []config.WatchEntry, logger *logging.Logger) error {
	if len(entries) == 0 {
		return nil
	}
	handler := watcher.NewHandler(func(notification watcher.Notification) {
		fields := map[string]string{
			"pattern": notification.WatchedPattern,
			"path":    notification.Path,
			"change":  notification.Change.String(),
		}
		if notification.NewPath != "" {
			fields["new_path"] = notification.NewPath
		}
		if notification.OldPath != "" {
			fields["old_path"] = notification.OldPath
		}
		logger.Info("path changed", fields)
	})
	for _, entry := range entries {
		var err error
		if entry.KindOrDefault() == config.KindFolder {
			err = watches.WatchFolder(entry.Pattern, handler)
		} else {
			err = watches.WatchFile(entry.Pattern, handler)
		}
		if err != nil {
			_ = watches.Unwatch(handler)
			return err
		}
	}
	return nil
}

// serveUntilDone serves until ctx ends or the server fails, then shuts down
// within timeout.
func serveUntilDone(ctx context.Context, server *http.Server, listener net.Listener, logger *logging.Logger, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	var failure error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			failure = err
			logger.Error("http server stopped", map[string]string{
				"error": err.Error(),
			})
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", map[string]string{
			"error": err.Error(),
		})
	}
	return failure
}
