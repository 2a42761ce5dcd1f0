package watcher

import (
	"fmt"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
)

// ChangeType is the kind of change reported to a handler.
type ChangeType int

const (
	Created ChangeType = iota + 1
	Deleted
	// Edited is reported for files only.
	Edited
)

func (c ChangeType) String() string {
	switch c {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Edited:
		return "edited"
	default:
		return "unknown"
	}
}

func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ChangeType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "created":
		*c = Created
	case "deleted":
		*c = Deleted
	case "edited":
		*c = Edited
	default:
		return fmt.Errorf("unknown change type %q", text)
	}
	return nil
}

// Notification describes one change to a watched path.
type Notification struct {
	WatchedPattern string     `json:"watched_pattern"`
	Path           string     `json:"path"`
	Change         ChangeType `json:"change"`
	// NewPath is set on Deleted when the path was renamed away.
	NewPath string `json:"new_path,omitempty"`
	// OldPath is set on Created when the path was renamed into place.
	OldPath string `json:"old_path,omitempty"`
}

// Handler receives notifications. Handlers identify a subscriber, so the
// dynamic type must be comparable; pointer types are the usual choice.
type Handler interface {
	HandlePathChange(Notification)
}

type handlerFunc struct {
	fn func(Notification)
}

func (h *handlerFunc) HandlePathChange(notification Notification) {
	h.fn(notification)
}

// NewHandler wraps fn in a Handler with its own identity.
func NewHandler(fn func(Notification)) Handler {
	return &handlerFunc{fn: fn}
}

// Options configures a PathWatcher.
type Options struct {
	// Native defaults to an fsnotify backend owned by the PathWatcher.
	Native Native
	// FileSystem defaults to OSFileSystem.
	FileSystem     FileSystem
	Style          pathutil.Style
	CaseComparison pathutil.CaseComparison
	Strategy       PoolStrategy
	Logger         *logging.Logger
	Metrics        *metrics.Registry
}

// Stats reports the size of the watch graph.
type Stats struct {
	Handles        int
	SharedWatchers int
	Subscriptions  int
}
