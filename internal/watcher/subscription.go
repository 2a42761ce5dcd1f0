package watcher

import (
	"slices"
	"sync"
	"sync/atomic"

	"pathwatch/internal/pattern"
)

// doubt records a native event that contradicted the filesystem when it was
// handled. The next event for the same path resolves it.
type doubt int

const (
	doubtNone doubt = iota
	// doubtCreatedAfterDelete: a delete arrived but the path still exists, so it
	// may have been recreated right away.
	doubtCreatedAfterDelete
	// doubtDeletedAfterCreate: a create arrived but the path is gone, so it may
	// have been deleted right away.
	doubtDeletedAfterCreate
)

// kindCaps is what differs between watching files and watching folders.
type kindCaps struct {
	name           string
	exists         func(fs FileSystem, path string) bool
	supportsEdited bool
}

var (
	fileKind   = kindCaps{name: "file", exists: FileSystem.FileExists, supportsEdited: true}
	folderKind = kindCaps{name: "folder", exists: FileSystem.FolderExists}
)

type pathState struct {
	path    string
	existed bool
	doubt   doubt

	// renamedFrom carries OldPath for a Created held back by doubtDeletedAfterCreate.
	renamedFrom string
}

type subscriptionKey struct {
	pattern string
	handler Handler
}

type pendingNotification struct {
	sub          *subscription
	notification Notification
}

// subscription is one (pattern, handler) watch. It follows the shared watcher
// of the pattern's folder and turns raw events into notifications, keeping
// per-path existence so duplicates and batched races resolve to one
// consistent sequence. Everything except the delivery fields is guarded by
// the owner's mutex.
type subscription struct {
	owner   *PathWatcher
	handler Handler
	pattern *pattern.Pattern
	kind    kindCaps
	node    *sharedWatcher

	handle     *watchHandle
	handleID   uint64
	listenerID uint64
	states     map[string]*pathState

	// suspended is written under the owner's mutex and read during delivery.
	suspended atomic.Int32

	deliverMu sync.Mutex
	closed    bool
}

func (sub *subscription) start() {
	sub.listenerID = sub.node.addListener(sub)
	sub.baseline()
	sub.subscribeHandle()
}

func (sub *subscription) close() {
	sub.node.removeListener(sub.listenerID)
	sub.unsubscribeHandle()
	sub.node.release()
	sub.states = nil
}

// markClosed waits for an in-flight callback and blocks later ones.
func (sub *subscription) markClosed() {
	sub.deliverMu.Lock()
	sub.closed = true
	sub.deliverMu.Unlock()
}

// settle waits for an in-flight callback to return.
func (sub *subscription) settle() {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
}

func (sub *subscription) isSuspended() bool {
	return sub.suspended.Load() > 0
}

func (sub *subscription) subscribeHandle() {
	handle := sub.node.handle
	if handle == nil || handle == sub.handle || sub.isSuspended() {
		return
	}
	sub.unsubscribeHandle()
	sub.handle = handle
	sub.handleID = handle.subscribe(sub.onEvent)
}

func (sub *subscription) unsubscribeHandle() {
	if sub.handle == nil {
		return
	}
	sub.handle.unsubscribe(sub.handleID)
	sub.handle = nil
	sub.handleID = 0
}

// baseline records which matching paths exist right now, without notifying.
func (sub *subscription) baseline() {
	sub.states = make(map[string]*pathState)
	for _, path := range sub.existing() {
		sub.state(path).existed = true
	}
}

// existing lists the concrete paths that match the pattern and exist as the
// watched kind.
func (sub *subscription) existing() []string {
	fs := sub.owner.fs
	if !sub.pattern.HasWildcard() {
		if sub.kind.exists(fs, sub.pattern.Path()) {
			return []string{sub.pattern.Path()}
		}
		return nil
	}

	folder, _ := sub.pattern.FolderPath()
	names, err := fs.ListFolder(folder)
	if err != nil {
		return nil
	}
	slices.Sort(names)
	var paths []string
	for _, name := range names {
		path := sub.owner.style.Join(folder, name)
		if sub.pattern.Match(path) && sub.kind.exists(fs, path) {
			paths = append(paths, path)
		}
	}
	return paths
}

func (sub *subscription) state(path string) *pathState {
	path = sub.clean(path)
	key := sub.owner.style.Fold(path, sub.owner.cc)
	st, ok := sub.states[key]
	if !ok {
		st = &pathState{path: path}
		sub.states[key] = st
	}
	return st
}

func (sub *subscription) forget(st *pathState) {
	delete(sub.states, sub.owner.style.Fold(st.path, sub.owner.cc))
}

func (sub *subscription) clean(path string) string {
	normalized, err := sub.owner.style.Normalize(path)
	if err != nil {
		return path
	}
	return sub.owner.style.TrimEndSeparator(normalized)
}

func (sub *subscription) onEvent(event RawEvent) {
	if sub.states == nil {
		return
	}
	switch event.Op {
	case RawCreated:
		if sub.pattern.Match(event.Path) {
			sub.created(event.Path)
		}
	case RawDeleted:
		if sub.pattern.Match(event.Path) {
			sub.deleted(event.Path)
		}
	case RawChanged:
		if sub.pattern.Match(event.Path) {
			sub.changed(event.Path)
		}
	case RawRenamed:
		if event.OldPath != "" && sub.pattern.Match(event.OldPath) {
			sub.renamedAway(event.OldPath, event.Path)
		}
		if event.Path != "" && sub.pattern.Match(event.Path) {
			sub.renamedInto(event.Path, event.OldPath)
		}
	}
}

func (sub *subscription) otherKindExists(path string) bool {
	fs := sub.owner.fs
	return fs.FileExists(path) || fs.FolderExists(path)
}

func (sub *subscription) created(path string) {
	st := sub.state(path)
	exists := sub.kind.exists(sub.owner.fs, st.path)
	if !exists && sub.otherKindExists(st.path) {
		if !st.existed && st.doubt == doubtNone {
			sub.forget(st)
		}
		return
	}

	switch {
	case st.doubt == doubtCreatedAfterDelete:
		sub.emit(Notification{Path: st.path, Change: Deleted})
		sub.emit(Notification{Path: st.path, Change: Created})
		st.existed, st.doubt = true, doubtNone
	case exists:
		if !st.existed {
			sub.emit(Notification{Path: st.path, Change: Created})
		}
		st.existed, st.doubt, st.renamedFrom = true, doubtNone, ""
	case !st.existed:
		st.doubt = doubtDeletedAfterCreate
	}
}

func (sub *subscription) deleted(path string) {
	st := sub.state(path)
	exists := sub.kind.exists(sub.owner.fs, st.path)

	switch {
	case st.doubt == doubtDeletedAfterCreate:
		sub.emitCreatedThenDeleted(st, "")
		st.existed, st.doubt = false, doubtNone
	case !exists:
		if st.existed {
			sub.emit(Notification{Path: st.path, Change: Deleted})
		}
		st.existed, st.doubt = false, doubtNone
	case st.existed:
		st.doubt = doubtCreatedAfterDelete
	}
	if !st.existed && st.doubt == doubtNone {
		sub.forget(st)
	}
}

func (sub *subscription) changed(path string) {
	if !sub.kind.supportsEdited {
		return
	}
	path = sub.clean(path)
	if sub.kind.exists(sub.owner.fs, path) {
		sub.emit(Notification{Path: path, Change: Edited})
	}
}

func (sub *subscription) renamedAway(oldPath, newPath string) {
	st := sub.state(oldPath)
	switch {
	case st.doubt == doubtDeletedAfterCreate:
		sub.emitCreatedThenDeleted(st, sub.clean(newPath))
	case st.existed || st.doubt == doubtCreatedAfterDelete:
		sub.emit(Notification{Path: st.path, Change: Deleted, NewPath: sub.clean(newPath)})
	}
	st.existed, st.doubt = false, doubtNone
	sub.forget(st)
}

// renamedInto reports a path that replaced the target. A replacement of the
// other kind ends the target; one already gone again is held back until its
// Deleted arrives.
func (sub *subscription) renamedInto(newPath, oldPath string) {
	st := sub.state(newPath)
	from := ""
	if oldPath != "" {
		from = sub.clean(oldPath)
	}
	exists := sub.kind.exists(sub.owner.fs, st.path)
	if st.existed || st.doubt == doubtCreatedAfterDelete {
		sub.emit(Notification{Path: st.path, Change: Deleted})
	}

	switch {
	case exists:
		sub.emit(Notification{Path: st.path, Change: Created, OldPath: from})
		st.existed, st.doubt, st.renamedFrom = true, doubtNone, ""
	case sub.otherKindExists(st.path):
		st.existed, st.doubt = false, doubtNone
		sub.forget(st)
	default:
		st.existed, st.doubt, st.renamedFrom = false, doubtDeletedAfterCreate, from
	}
}

func (sub *subscription) emitCreatedThenDeleted(st *pathState, newPath string) {
	sub.emit(Notification{Path: st.path, Change: Created, OldPath: st.renamedFrom})
	sub.emit(Notification{Path: st.path, Change: Deleted, NewPath: newPath})
	st.renamedFrom = ""
}

// folderCreated follows the node's new handle and reports matches that
// appeared with the folder.
func (sub *subscription) folderCreated(node *sharedWatcher) {
	if sub.isSuspended() {
		return
	}
	sub.subscribeHandle()
	for _, path := range sub.existing() {
		st := sub.state(path)
		if !st.existed {
			sub.emit(Notification{Path: st.path, Change: Created})
		}
		st.existed, st.doubt = true, doubtNone
	}
}

func (sub *subscription) folderDeleted(node *sharedWatcher) {
	sub.unsubscribeHandle()
	keys := make([]string, 0, len(sub.states))
	for key := range sub.states {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		st := sub.states[key]
		switch {
		case st.doubt == doubtDeletedAfterCreate:
			sub.emitCreatedThenDeleted(st, "")
		case st.existed:
			sub.emit(Notification{Path: st.path, Change: Deleted})
		}
	}
	sub.states = make(map[string]*pathState)
}

func (sub *subscription) suspend() {
	if sub.suspended.Add(1) == 1 {
		sub.unsubscribeHandle()
	}
}

// resume ends one level of suspension. Leaving the last one re-reads
// existence silently; changes made while suspended are not replayed.
func (sub *subscription) resume() {
	if sub.suspended.Add(-1) != 0 {
		return
	}
	sub.baseline()
	sub.subscribeHandle()
}

func (sub *subscription) emit(notification Notification) {
	if sub.isSuspended() {
		return
	}
	notification.WatchedPattern = sub.pattern.String()
	sub.owner.pending = append(sub.owner.pending, pendingNotification{sub: sub, notification: notification})
}

// deliver runs the handler outside the owner's mutex.
func (sub *subscription) deliver(notification Notification) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if sub.closed || sub.isSuspended() {
		sub.owner.metrics.IncEventsDropped()
		return
	}
	sub.owner.metrics.RecordNotification(notification.Change.String())
	sub.handler.HandlePathChange(notification)
}
