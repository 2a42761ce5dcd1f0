package watcher

import (
	"fmt"
	"strconv"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
)

// PoolStrategy decides how folders map onto native watches.
type PoolStrategy int

const (
	// StrategyOptimized opens one non-recursive native watch per folder.
	StrategyOptimized PoolStrategy = iota
	// StrategyNonLocking opens one recursive native watch per filesystem root,
	// so no ancestor folder is held open by a watch. Notifications are coarser
	// and filtered afterwards.
	StrategyNonLocking
)

func (s PoolStrategy) String() string {
	if s == StrategyNonLocking {
		return "non-locking"
	}
	return "optimized"
}

// ParsePoolStrategy maps a config value to a PoolStrategy.
func ParsePoolStrategy(value string) (PoolStrategy, bool) {
	switch value {
	case "", "optimized":
		return StrategyOptimized, true
	case "non-locking", "nonlocking":
		return StrategyNonLocking, true
	default:
		return StrategyOptimized, false
	}
}

// watcherPool owns every watchHandle. Guarded by the PathWatcher mutex.
type watcherPool struct {
	native   Native
	style    pathutil.Style
	cc       pathutil.CaseComparison
	strategy PoolStrategy
	handles  map[string]*watchHandle
	sink     func(handle *watchHandle, event RawEvent)
	logger   *logging.Logger
	metrics  *metrics.Registry
}

func newWatcherPool(native Native, style pathutil.Style, cc pathutil.CaseComparison, strategy PoolStrategy, logger *logging.Logger, registry *metrics.Registry) *watcherPool {
	return &watcherPool{
		native:   native,
		style:    style,
		cc:       cc,
		strategy: strategy,
		handles:  make(map[string]*watchHandle),
		logger:   logger,
		metrics:  registry,
	}
}

// target returns the pool key and the native folder to watch for folder.
func (pool *watcherPool) target(folder string) (key, nativeFolder string, recursive bool, err error) {
	nativeFolder = folder
	if pool.strategy == StrategyNonLocking {
		root, ok := pool.style.Root(folder)
		if !ok {
			return "", "", false, fmt.Errorf("%w: %q", ErrNotRooted, folder)
		}
		nativeFolder = root
		recursive = true
	}
	key, err = pool.style.UniqueFolder(nativeFolder, pool.cc)
	if err != nil {
		return "", "", false, err
	}
	return key, pool.style.TrimEndSeparator(nativeFolder), recursive, nil
}

// get returns an acquired handle covering folder, creating it on a miss.
func (pool *watcherPool) get(folder string) (*watchHandle, error) {
	key, nativeFolder, recursive, err := pool.target(folder)
	if err != nil {
		return nil, err
	}
	if handle, ok := pool.handles[key]; ok {
		handle.increment()
		return handle, nil
	}

	handle := &watchHandle{key: key, folder: nativeFolder, recursive: recursive}
	registration, err := pool.native.Watch(nativeFolder, recursive, func(event RawEvent) {
		if pool.sink != nil {
			pool.sink(handle, event)
		}
	})
	if err != nil {
		pool.logger.Warn("native watch failed", map[string]string{
			"folder": nativeFolder,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("watch %q: %w", nativeFolder, err)
	}
	handle.registration = registration
	handle.enabled = true
	handle.onReleased = pool.remove
	handle.increment()
	pool.handles[key] = handle
	pool.metrics.IncHandlesCreated()
	pool.logger.Debug("watch handle created", map[string]string{
		"folder":         nativeFolder,
		"recursive":      strconv.FormatBool(recursive),
		"active_handles": strconv.Itoa(len(pool.handles)),
	})
	return handle, nil
}

func (pool *watcherPool) remove(handle *watchHandle, err error) {
	if current, ok := pool.handles[handle.key]; ok && current == handle {
		delete(pool.handles, handle.key)
	}
	pool.metrics.IncHandlesDisposed()
	if err != nil {
		pool.metrics.IncNativeErrors()
		pool.logger.Warn("native watch release failed", map[string]string{
			"folder": handle.folder,
			"error":  err.Error(),
		})
		return
	}
	pool.logger.Debug("watch handle released", map[string]string{
		"folder":         handle.folder,
		"active_handles": strconv.Itoa(len(pool.handles)),
	})
}
