package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// FSNotify is a Native backed by a single fsnotify.Watcher. It watches folders
// non-recursively and routes each event to the registrations of the event's
// parent folder.
type FSNotify struct {
	watcher       *fsnotify.Watcher
	mutex         sync.Mutex
	registrations map[string][]*fsnotifyRegistration
	closed        bool

	queueMutex sync.Mutex
	queueCond  *sync.Cond
	queue      []fsnotify.Event
	stopped    bool

	done    chan struct{}
	logger  *logging.Logger
	metrics *metrics.Registry
}

type fsnotifyRegistration struct {
	native  *FSNotify
	folder  string
	sink    func(RawEvent)
	enabled atomic.Bool
	once    sync.Once
}

// NewFSNotify starts an fsnotify backend. Close releases it.
func NewFSNotify(logger *logging.Logger, registry *metrics.Registry) (*FSNotify, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	native := &FSNotify{
		watcher:       watcher,
		registrations: make(map[string][]*fsnotifyRegistration),
		done:          make(chan struct{}),
		logger:        logger,
		metrics:       registry,
	}
	native.queueCond = sync.NewCond(&native.queueMutex)

	go native.forward()
	go native.run()
	return native, nil
}

// Watch implements Native.
func (native *FSNotify) Watch(folder string, recursive bool, sink func(RawEvent)) (Registration, error) {
	if recursive {
		return nil, ErrRecursiveUnsupported
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	key := filepath.Clean(folder)

	native.mutex.Lock()
	defer native.mutex.Unlock()
	if native.closed {
		return nil, ErrClosed
	}
	if len(native.registrations[key]) == 0 {
		if err := native.watcher.Add(key); err != nil {
			return nil, err
		}
	}
	registration := &fsnotifyRegistration{native: native, folder: key, sink: sink}
	registration.enabled.Store(true)
	native.registrations[key] = append(native.registrations[key], registration)
	return registration, nil
}

func (registration *fsnotifyRegistration) SetEnabled(enabled bool) {
	registration.enabled.Store(enabled)
}

func (registration *fsnotifyRegistration) Close() error {
	var err error
	registration.once.Do(func() {
		registration.enabled.Store(false)
		err = registration.native.remove(registration)
	})
	return err
}

func (native *FSNotify) remove(registration *fsnotifyRegistration) error {
	native.mutex.Lock()
	defer native.mutex.Unlock()

	entries := native.registrations[registration.folder]
	for index, candidate := range entries {
		if candidate == registration {
			entries = append(entries[:index], entries[index+1:]...)
			break
		}
	}
	if len(entries) > 0 {
		native.registrations[registration.folder] = entries
		return nil
	}
	delete(native.registrations, registration.folder)
	if native.closed {
		return nil
	}
	// inotify drops the watch by itself when the folder is deleted.
	if err := native.watcher.Remove(registration.folder); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

// Close stops event delivery and releases the fsnotify watcher.
func (native *FSNotify) Close() error {
	native.mutex.Lock()
	if native.closed {
		native.mutex.Unlock()
		return nil
	}
	native.closed = true
	native.registrations = make(map[string][]*fsnotifyRegistration)
	native.mutex.Unlock()

	close(native.done)
	native.queueMutex.Lock()
	native.stopped = true
	native.queue = nil
	native.queueMutex.Unlock()
	native.queueCond.Broadcast()
	return native.watcher.Close()
}

// forward drains fsnotify without blocking on dispatch, so Add and Remove
// calls made while handling an event cannot stall the fsnotify reader.
func (native *FSNotify) forward() {
	for {
		select {
		case event, ok := <-native.watcher.Events:
			if !ok {
				return
			}
			native.queueMutex.Lock()
			if !native.stopped {
				native.queue = append(native.queue, event)
			}
			native.queueMutex.Unlock()
			native.queueCond.Signal()
		case err, ok := <-native.watcher.Errors:
			if !ok {
				return
			}
			native.handleError(err)
		case <-native.done:
			return
		}
	}
}

// renamePairWindow is how long a bare Rename waits for the Create of its new
// name before it is reported as a delete.
const renamePairWindow = 10 * time.Millisecond

func (native *FSNotify) run() {
	var held fsnotify.Event
	holding := false
	for {
		event, ok, stopped := native.next(holding)
		if stopped {
			return
		}
		if !ok {
			native.dispatch(held.Name, translateEvent(held))
			holding = false
			continue
		}
		if holding {
			holding = false
			if raws, paired := pairRename(held, event); paired {
				native.dispatch(event.Name, raws)
				continue
			}
			native.dispatch(held.Name, translateEvent(held))
		}
		if isBareRename(event) {
			held, holding = event, true
			continue
		}
		native.dispatch(event.Name, translateEvent(event))
	}
}

// next pops the next queued event. While a rename is held it waits at most
// renamePairWindow and reports ok=false when nothing arrived.
func (native *FSNotify) next(holding bool) (event fsnotify.Event, ok, stopped bool) {
	native.queueMutex.Lock()
	if holding && len(native.queue) == 0 && !native.stopped {
		native.queueMutex.Unlock()
		time.Sleep(renamePairWindow)
		native.queueMutex.Lock()
		if len(native.queue) == 0 && !native.stopped {
			native.queueMutex.Unlock()
			return fsnotify.Event{}, false, false
		}
	}
	for len(native.queue) == 0 && !native.stopped {
		native.queueCond.Wait()
	}
	if native.stopped {
		native.queueMutex.Unlock()
		return fsnotify.Event{}, false, true
	}
	event = native.queue[0]
	native.queue[0] = fsnotify.Event{}
	native.queue = native.queue[1:]
	native.queueMutex.Unlock()
	return event, true, false
}

func (native *FSNotify) dispatch(name string, raws []RawEvent) {
	if len(raws) == 0 {
		return
	}

	folder := filepath.Dir(filepath.Clean(name))
	native.mutex.Lock()
	targets := append([]*fsnotifyRegistration(nil), native.registrations[folder]...)
	native.mutex.Unlock()

	for _, raw := range raws {
		for _, registration := range targets {
			if registration.enabled.Load() {
				registration.sink(raw)
			}
		}
	}
}

// translateEvent maps a single fsnotify event onto raw events. A Rename that
// was not paired with its new name is a delete of the old name.
func translateEvent(event fsnotify.Event) []RawEvent {
	path := filepath.Clean(event.Name)
	var raws []RawEvent
	if event.Has(fsnotify.Create) {
		raws = append(raws, RawEvent{Op: RawCreated, Path: path})
	}
	if event.Has(fsnotify.Write) {
		raws = append(raws, RawEvent{Op: RawChanged, Path: path})
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		raws = append(raws, RawEvent{Op: RawDeleted, Path: path})
	}
	return raws
}

func isBareRename(event fsnotify.Event) bool {
	return event.Has(fsnotify.Rename) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove)
}

// pairRename joins a Rename of the old name with the Create of the new name
// that fsnotify reports right after it in the same folder.
func pairRename(renamed, next fsnotify.Event) ([]RawEvent, bool) {
	if !next.Has(fsnotify.Create) || next.Has(fsnotify.Rename) || next.Has(fsnotify.Remove) {
		return nil, false
	}
	oldPath := filepath.Clean(renamed.Name)
	newPath := filepath.Clean(next.Name)
	if oldPath == newPath || filepath.Dir(oldPath) != filepath.Dir(newPath) {
		return nil, false
	}
	raws := []RawEvent{{Op: RawRenamed, OldPath: oldPath, Path: newPath}}
	if next.Has(fsnotify.Write) {
		raws = append(raws, RawEvent{Op: RawChanged, Path: newPath})
	}
	return raws, true
}

func (native *FSNotify) handleError(err error) {
	if err == nil {
		return
	}
	native.metrics.IncNativeErrors()
	fields := map[string]string{"error": err.Error()}
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		fields["hint"] = "events were lost; re-watch affected paths"
	}
	native.logger.Warn("native watcher error", fields)
}
