package watcher

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"sync"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
	"pathwatch/internal/pattern"
)

// PathWatcher is the entry point: it owns the shared watcher graph, the
// handle pool and every subscription, all guarded by one mutex. Handlers run
// outside that mutex on the goroutine that delivered the native event.
//
// A handler must not call Unwatch or SuspendWatching for itself from inside
// its own callback; both wait for the callback to return.
type PathWatcher struct {
	mu            sync.Mutex
	style         pathutil.Style
	cc            pathutil.CaseComparison
	fs            FileSystem
	pool          *watcherPool
	nodes         map[string]*sharedWatcher
	subscriptions map[subscriptionKey]*subscription
	pending       []pendingNotification
	closed        bool

	ownedNative io.Closer
	logger      *logging.Logger
	metrics     *metrics.Registry
}

// Suspension pauses a handler's notifications until it is closed.
type Suspension struct {
	watcher *PathWatcher
	subs    []*subscription
	once    sync.Once
}

// New builds a PathWatcher. Without Options.Native it starts an fsnotify
// backend that Close releases.
func New(options Options) (*PathWatcher, error) {
	style := options.Style
	if style == 0 {
		style = pathutil.NativeStyle()
	}
	fs := options.FileSystem
	if fs == nil {
		fs = OSFileSystem{}
	}
	logger := options.Logger.With(map[string]string{"pathwatch.category": "watcher"})

	w := &PathWatcher{
		style:         style,
		cc:            options.CaseComparison,
		fs:            fs,
		nodes:         make(map[string]*sharedWatcher),
		subscriptions: make(map[subscriptionKey]*subscription),
		logger:        logger,
		metrics:       options.Metrics,
	}

	native := options.Native
	if native == nil {
		if options.Strategy == StrategyNonLocking {
			return nil, fmt.Errorf("strategy %s: %w", options.Strategy, ErrRecursiveUnsupported)
		}
		backend, err := NewFSNotify(logger, options.Metrics)
		if err != nil {
			return nil, fmt.Errorf("start native watcher: %w", err)
		}
		native = backend
		w.ownedNative = backend
	}
	w.pool = newWatcherPool(native, style, options.CaseComparison, options.Strategy, logger, options.Metrics)
	w.pool.sink = w.onRawEvent
	return w, nil
}

// WatchFile reports changes to files matching pattern. A pattern written with
// a trailing separator names a folder and is rejected.
func (w *PathWatcher) WatchFile(raw string, handler Handler) error {
	return w.watch(raw, handler, fileKind)
}

// WatchFolder reports creation and deletion of folders matching pattern.
func (w *PathWatcher) WatchFolder(raw string, handler Handler) error {
	return w.watch(raw, handler, folderKind)
}

func (w *PathWatcher) watch(raw string, handler Handler, kind kindCaps) error {
	if !validHandler(handler) {
		return ErrInvalidHandler
	}
	compiled, err := pattern.Compile(raw, w.style, w.cc)
	if err != nil {
		return err
	}
	if !compiled.IsRooted() {
		return fmt.Errorf("%w: %q", ErrNotRooted, raw)
	}
	if kind.name == fileKind.name && compiled.ExplicitFolder() {
		return fmt.Errorf("%w: %q", ErrFolderAsFile, raw)
	}
	folder, ok := compiled.FolderPath()
	if !ok {
		return fmt.Errorf("%w: %q has no folder", pattern.ErrInvalidPattern, raw)
	}
	key := subscriptionKey{pattern: compiled.Key(), handler: handler}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if _, exists := w.subscriptions[key]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAlreadyWatched, compiled.String())
	}
	node, err := w.acquireNode(folder)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	sub := &subscription{
		owner:   w,
		handler: handler,
		pattern: compiled,
		kind:    kind,
		node:    node,
	}
	sub.start()
	w.subscriptions[key] = sub
	w.metrics.AddSubscriptions(1)
	w.logger.Info("watch added", map[string]string{
		"pattern":       compiled.String(),
		"kind":          kind.name,
		"subscriptions": strconv.Itoa(len(w.subscriptions)),
	})
	w.unlockAndDeliver()
	return nil
}

// Unwatch removes every watch of handler. No callback for handler runs once
// it returns.
func (w *PathWatcher) Unwatch(handler Handler) error {
	if !validHandler(handler) {
		return ErrInvalidHandler
	}

	w.mu.Lock()
	removed := w.takeSubscriptions(handler)
	if len(removed) == 0 {
		w.mu.Unlock()
		return ErrNotWatched
	}
	for _, sub := range removed {
		sub.close()
		w.logger.Info("watch removed", map[string]string{
			"pattern": sub.pattern.String(),
			"kind":    sub.kind.name,
		})
	}
	w.metrics.AddSubscriptions(-int64(len(removed)))
	w.unlockAndDeliver()

	for _, sub := range removed {
		sub.markClosed()
	}
	return nil
}

func (w *PathWatcher) takeSubscriptions(handler Handler) []*subscription {
	var removed []*subscription
	for key, sub := range w.subscriptions {
		if key.handler == handler {
			removed = append(removed, sub)
			delete(w.subscriptions, key)
		}
	}
	return removed
}

func (w *PathWatcher) subscriptionsOf(handler Handler) []*subscription {
	var subs []*subscription
	for key, sub := range w.subscriptions {
		if key.handler == handler {
			subs = append(subs, sub)
		}
	}
	return subs
}

// SuspendWatching stops notifications for handler until the returned
// Suspension is closed. Suspensions nest. Changes made meanwhile are not
// replayed on resume.
func (w *PathWatcher) SuspendWatching(handler Handler) (*Suspension, error) {
	if !validHandler(handler) {
		return nil, ErrInvalidHandler
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	subs := w.subscriptionsOf(handler)
	if len(subs) == 0 {
		w.mu.Unlock()
		return nil, ErrNotWatched
	}
	for _, sub := range subs {
		sub.suspend()
	}
	w.logger.Debug("watch suspended", map[string]string{
		"subscriptions": strconv.Itoa(len(subs)),
	})
	w.unlockAndDeliver()

	for _, sub := range subs {
		sub.settle()
	}
	return &Suspension{watcher: w, subs: subs}, nil
}

// Close resumes the suspended subscriptions that are still registered. It is
// safe to call more than once.
func (s *Suspension) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		w := s.watcher
		w.mu.Lock()
		for _, sub := range s.subs {
			if current, ok := w.subscriptions[subscriptionKey{pattern: sub.pattern.Key(), handler: sub.handler}]; ok && current == sub {
				sub.resume()
			}
		}
		w.unlockAndDeliver()
	})
	return nil
}

// onRawEvent is the pool sink for every native registration.
func (w *PathWatcher) onRawEvent(handle *watchHandle, event RawEvent) {
	w.mu.Lock()
	if w.closed || handle.disposed {
		w.mu.Unlock()
		w.metrics.IncEventsDropped()
		return
	}
	handle.emit(event)
	w.unlockAndDeliver()
}

// unlockAndDeliver releases the mutex and runs the notifications queued while
// it was held, in order.
func (w *PathWatcher) unlockAndDeliver() {
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, item := range batch {
		item.sub.deliver(item.notification)
	}
}

// Close removes every watch and releases the native backend when New created
// it.
func (w *PathWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	subs := make([]*subscription, 0, len(w.subscriptions))
	for key, sub := range w.subscriptions {
		subs = append(subs, sub)
		delete(w.subscriptions, key)
	}
	for _, sub := range subs {
		sub.close()
	}
	w.metrics.AddSubscriptions(-int64(len(subs)))
	w.pending = nil
	remaining := len(w.nodes)
	w.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
	if remaining > 0 {
		w.logger.Warn("shared watchers left after close", map[string]string{
			"shared_watchers": strconv.Itoa(remaining),
		})
	}

	var err error
	if w.ownedNative != nil {
		err = w.ownedNative.Close()
	}
	w.logger.Info("watcher closed", nil)
	return err
}

// Stats reports the current size of the watch graph.
func (w *PathWatcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Handles:        len(w.pool.handles),
		SharedWatchers: len(w.nodes),
		Subscriptions:  len(w.subscriptions),
	}
}

func validHandler(handler Handler) bool {
	if handler == nil {
		return false
	}
	value := reflect.ValueOf(handler)
	if value.Kind() == reflect.Pointer && value.IsNil() {
		return false
	}
	return value.Type().Comparable()
}
