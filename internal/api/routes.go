// Package api exposes a PathWatcher over HTTP: a websocket notification
// stream, Prometheus metrics and a health probe.
package api

import (
	"net/http"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/watcher"
)

// Watches is the part of *watcher.PathWatcher the routes use.
type Watches interface {
	WatchFile(pattern string, handler watcher.Handler) error
	WatchFolder(pattern string, handler watcher.Handler) error
	Unwatch(handler watcher.Handler) error
	Stats() watcher.Stats
}

type RouteOptions struct {
	// AllowedOrigins lists origins accepted for websocket upgrades. Empty
	// means same-host only.
	AllowedOrigins []string
	Metrics        *metrics.Registry
	Logger         *logging.Logger
}

func RegisterRoutes(mux *http.ServeMux, watches Watches, options RouteOptions) {
	logger := options.Logger.With(map[string]string{"pathwatch.category": "api"})

	stream := &watchHandler{
		watches:        watches,
		allowedOrigins: options.AllowedOrigins,
		metrics:        options.Metrics,
		logger:         logger,
	}
	status := &statusHandler{
		watches: watches,
		metrics: options.Metrics,
	}

	mux.Handle("/ws", loggingMiddleware(logger, stream))
	mux.Handle("/healthz", loggingMiddleware(logger, restHandler(status.handleHealth)))
	mux.Handle("/metrics", loggingMiddleware(logger, restHandler(status.handleMetrics)))
}
