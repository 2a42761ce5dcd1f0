package watcher

import "errors"

var (
	ErrNotRooted            = errors.New("path is not rooted")
	ErrFolderAsFile         = errors.New("folder path watched as a file")
	ErrInvalidHandler       = errors.New("handler must be a non-nil comparable value")
	ErrAlreadyWatched       = errors.New("pattern is already watched by this handler")
	ErrNotWatched           = errors.New("handler is not watching anything")
	ErrClosed               = errors.New("watcher is closed")
	ErrRecursiveUnsupported = errors.New("recursive native watches are not supported")
)
