package watcher

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pathwatch/internal/logging"
	"pathwatch/internal/metrics"
	"pathwatch/internal/pathutil"
)

// fakeNative delivers events synchronously on the calling goroutine.
type fakeNative struct {
	style pathutil.Style

	mutex         sync.Mutex
	registrations []*fakeRegistration
	watchCalls    map[string]int
	failures      map[string]error
}

type fakeRegistration struct {
	native    *fakeNative
	folder    string
	recursive bool
	sink      func(RawEvent)
	enabled   bool
	closed    bool
}

func newFakeNative(style pathutil.Style) *fakeNative {
	return &fakeNative{
		style:      style,
		watchCalls: make(map[string]int),
		failures:   make(map[string]error),
	}
}

func (native *fakeNative) Watch(folder string, recursive bool, sink func(RawEvent)) (Registration, error) {
	native.mutex.Lock()
	defer native.mutex.Unlock()
	native.watchCalls[folder]++
	if err := native.failures[folder]; err != nil {
		return nil, err
	}
	registration := &fakeRegistration{native: native, folder: folder, recursive: recursive, sink: sink, enabled: true}
	native.registrations = append(native.registrations, registration)
	return registration, nil
}

func (registration *fakeRegistration) SetEnabled(enabled bool) {
	registration.native.mutex.Lock()
	registration.enabled = enabled
	registration.native.mutex.Unlock()
}

func (registration *fakeRegistration) Close() error {
	registration.native.mutex.Lock()
	defer registration.native.mutex.Unlock()
	if registration.closed {
		return errors.New("registration closed twice")
	}
	registration.closed = true
	registration.enabled = false
	return nil
}

func (native *fakeNative) fail(folder string, err error) {
	native.mutex.Lock()
	native.failures[folder] = err
	native.mutex.Unlock()
}

func (native *fakeNative) calls(folder string) int {
	native.mutex.Lock()
	defer native.mutex.Unlock()
	return native.watchCalls[folder]
}

// active lists the folders with an open registration.
func (native *fakeNative) active() []string {
	native.mutex.Lock()
	defer native.mutex.Unlock()
	var folders []string
	for _, registration := range native.registrations {
		if !registration.closed {
			folders = append(folders, registration.folder)
		}
	}
	sort.Strings(folders)
	return folders
}

func (native *fakeNative) covers(registration *fakeRegistration, path string) bool {
	if path == "" {
		return false
	}
	if registration.recursive {
		root := native.style.TrimEndSeparator(registration.folder)
		if native.style.Equals(path, root, pathutil.EnvironmentDefault, pathutil.RespectAmbiguity) {
			return false
		}
		prefix := native.style.Join(root, "")
		return strings.HasPrefix(native.style.Fold(path, pathutil.EnvironmentDefault), native.style.Fold(prefix, pathutil.EnvironmentDefault))
	}
	parent, ok := native.style.FolderPath(path)
	return ok && native.style.Equals(parent, registration.folder, pathutil.EnvironmentDefault, pathutil.RespectAmbiguity)
}

// emit sends each event to every enabled registration whose folder covers it.
func (native *fakeNative) emit(events ...RawEvent) {
	for _, event := range events {
		native.mutex.Lock()
		var targets []*fakeRegistration
		for _, registration := range native.registrations {
			if !registration.enabled || registration.closed {
				continue
			}
			if native.covers(registration, event.Path) || native.covers(registration, event.OldPath) {
				targets = append(targets, registration)
			}
		}
		native.mutex.Unlock()

		for _, registration := range targets {
			registration.sink(event)
		}
	}
}

// memFS is an in-memory FileSystem. Keys are folded when the style ignores case.
type memFS struct {
	style pathutil.Style

	mutex   sync.Mutex
	files   map[string]string
	folders map[string]string
}

func newMemFS(style pathutil.Style, folders ...string) *memFS {
	fs := &memFS{
		style:   style,
		files:   make(map[string]string),
		folders: make(map[string]string),
	}
	for _, folder := range folders {
		fs.mkdir(folder)
	}
	return fs
}

func (fs *memFS) key(path string) string {
	return fs.style.Fold(fs.style.TrimEndSeparator(path), pathutil.EnvironmentDefault)
}

func (fs *memFS) mkdir(path string) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	current := fs.style.TrimEndSeparator(path)
	for {
		fs.folders[fs.key(current)] = current
		parent, ok := fs.style.FolderPath(current)
		if !ok {
			return
		}
		current = parent
	}
}

func (fs *memFS) writeFile(path string) {
	if parent, ok := fs.style.FolderPath(path); ok {
		fs.mkdir(parent)
	}
	fs.mutex.Lock()
	fs.files[fs.key(path)] = path
	fs.mutex.Unlock()
}

// remove deletes path and everything below it.
func (fs *memFS) remove(path string) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	key := fs.key(path)
	prefix := fs.key(fs.style.Join(path, ""))
	for _, entries := range []map[string]string{fs.files, fs.folders} {
		for candidate := range entries {
			if candidate == key || strings.HasPrefix(candidate, prefix) {
				delete(entries, candidate)
			}
		}
	}
}

func (fs *memFS) FileExists(path string) bool {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	_, ok := fs.files[fs.key(path)]
	return ok
}

func (fs *memFS) FolderExists(path string) bool {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	_, ok := fs.folders[fs.key(path)]
	return ok
}

func (fs *memFS) ListFolder(path string) ([]string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	if _, ok := fs.folders[fs.key(path)]; !ok {
		return nil, errors.New("no such folder")
	}
	var names []string
	for _, entries := range []map[string]string{fs.files, fs.folders} {
		for _, candidate := range entries {
			parent, ok := fs.style.FolderPath(candidate)
			if ok && fs.key(parent) == fs.key(path) {
				names = append(names, fs.style.Base(candidate))
			}
		}
	}
	return names, nil
}

type recorder struct {
	mutex         sync.Mutex
	notifications []Notification
	signal        chan Notification
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan Notification, 64)}
}

func (r *recorder) HandlePathChange(notification Notification) {
	r.mutex.Lock()
	r.notifications = append(r.notifications, notification)
	r.mutex.Unlock()
	select {
	case r.signal <- notification:
	default:
	}
}

func (r *recorder) all() []Notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Notification(nil), r.notifications...)
}

func (r *recorder) changes() []ChangeType {
	var changes []ChangeType
	for _, notification := range r.all() {
		changes = append(changes, notification.Change)
	}
	return changes
}

func (r *recorder) reset() {
	r.mutex.Lock()
	r.notifications = nil
	r.mutex.Unlock()
}

type testEnv struct {
	watcher *PathWatcher
	native  *fakeNative
	fs      *memFS
	metrics *metrics.Registry
	logs    *logging.LogBuffer
}

func newTestEnv(t *testing.T, options Options, folders ...string) *testEnv {
	t.Helper()
	if options.Style == 0 {
		options.Style = pathutil.Unix
	}
	env := &testEnv{
		native:  newFakeNative(options.Style),
		fs:      newMemFS(options.Style, folders...),
		metrics: metrics.NewRegistry(),
		logs:    logging.NewLogBuffer(100),
	}
	options.Native = env.native
	options.FileSystem = env.fs
	options.Metrics = env.metrics
	options.Logger = logging.NewLoggerWithOutput(env.logs, logging.LevelDebug, nil)

	watcher, err := New(options)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() {
		_ = watcher.Close()
	})
	env.watcher = watcher
	return env
}

func expectChanges(t *testing.T, r *recorder, expected ...ChangeType) {
	t.Helper()
	got := r.changes()
	if len(got) != len(expected) {
		t.Fatalf("expected changes %v, got %v", expected, got)
	}
	for index := range expected {
		if got[index] != expected[index] {
			t.Fatalf("expected changes %v, got %v", expected, got)
		}
	}
}

func waitForNotification(notifications <-chan Notification) (Notification, bool) {
	select {
	case notification := <-notifications:
		return notification, true
	case <-time.After(2 * time.Second):
		return Notification{}, false
	}
}
