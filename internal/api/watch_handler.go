package api

import (
	"errors"
	"net/http"
	"strings"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
	"pathwatch/internal/pattern"
	"pathwatch/internal/watcher"
)

const watchStreamBuffer = 256

// watchHandler serves /ws?pattern=P&kind=file|folder. Each connection owns
// one handler identity, so closing the socket removes exactly its watch.
type watchHandler struct {
	watches        Watches
	allowedOrigins []string
	metrics        *metrics.Registry
	logger         *logging.Logger
}

type watchAck struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern"`
	Kind    string `json:"kind"`
}

type notificationPayload struct {
	Type string `json:"type"`
	watcher.Notification
}

// watchStream never blocks the watcher: notifications that do not fit the
// buffer are dropped and counted.
type watchStream struct {
	output  chan watcher.Notification
	metrics *metrics.Registry
	logger  *logging.Logger
}

func (s *watchStream) HandlePathChange(notification watcher.Notification) {
	select {
	case s.output <- notification:
	default:
		s.metrics.IncEventsDropped()
		s.logger.Warn("websocket client too slow; notification dropped", map[string]string{
			"path":   notification.Path,
			"change": notification.Change.String(),
		})
	}
}

func (h *watchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw := strings.TrimSpace(query.Get("pattern"))
	kind := strings.ToLower(strings.TrimSpace(query.Get("kind")))
	if kind == "" {
		kind = "file"
	}

	session, ok := acceptWatchSocket(w, r, h.allowedOrigins, h.logger)
	if !ok {
		return
	}
	if raw == "" {
		session.fail(http.StatusBadRequest, "pattern is required", nil)
		return
	}

	stream := &watchStream{
		output:  make(chan watcher.Notification, watchStreamBuffer),
		metrics: h.metrics,
		logger:  h.logger,
	}
	var err error
	switch kind {
	case "file":
		err = h.watches.WatchFile(raw, stream)
	case "folder":
		err = h.watches.WatchFolder(raw, stream)
	default:
		session.fail(http.StatusBadRequest, "kind must be file or folder", nil)
		return
	}
	if err != nil {
		session.fail(statusForWatchError(err), err.Error(), err)
		return
	}
	defer func() {
		if err := h.watches.Unwatch(stream); err != nil && !errors.Is(err, watcher.ErrNotWatched) {
			h.logger.Warn("unwatch after disconnect failed", map[string]string{
				"pattern": raw,
				"error":   err.Error(),
			})
		}
	}()

	session.stream(watchAck{Type: "watching", Pattern: raw, Kind: kind}, stream.output)
}

func statusForWatchError(err error) int {
	switch {
	case errors.Is(err, pattern.ErrInvalidPattern),
		errors.Is(err, pathutil.ErrInvalidPath),
		errors.Is(err, watcher.ErrNotRooted),
		errors.Is(err, watcher.ErrFolderAsFile):
		return http.StatusBadRequest
	case errors.Is(err, watcher.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
