package watcher

import (
	"strconv"

	"pathwatch/internal/pathutil"
)

// folderListener observes a shared watcher's folder appearing and vanishing.
type folderListener interface {
	folderCreated(node *sharedWatcher)
	folderDeleted(node *sharedWatcher)
}

type folderListenerEntry struct {
	id       uint64
	listener folderListener
}

// sharedWatcher is the node for one watched folder. While the folder exists
// it holds a handle on the folder's contents. It always follows its parent
// node: the parent's handle reports this folder being created or deleted, and
// the parent's own folder events cascade down. Guarded by the owner's mutex.
type sharedWatcher struct {
	owner  *PathWatcher
	key    string
	folder string
	refs   int

	handle *watchHandle

	parent           *sharedWatcher
	parentHandle     *watchHandle
	parentHandleID   uint64
	parentListenerID uint64
	listeners        []folderListenerEntry
	nextListenerID   uint64
}

// acquireNode returns the node for folder with one more reference, building
// missing ancestors first.
func (w *PathWatcher) acquireNode(folder string) (*sharedWatcher, error) {
	key, err := w.style.UniqueFolder(folder, w.cc)
	if err != nil {
		return nil, err
	}
	if node, ok := w.nodes[key]; ok {
		node.refs++
		return node, nil
	}

	node := &sharedWatcher{owner: w, key: key, folder: w.style.TrimEndSeparator(folder)}
	if parentFolder, ok := w.style.FolderPath(node.folder); ok {
		parent, err := w.acquireNode(parentFolder)
		if err != nil {
			return nil, err
		}
		node.parent = parent
	}
	if err := node.watchSelf(); err != nil {
		if node.parent != nil {
			node.parent.release()
		}
		return nil, err
	}

	node.refs = 1
	w.nodes[key] = node
	node.attachToParent()
	w.metrics.IncSharedWatchersCreated()
	w.logger.Debug("shared watcher created", map[string]string{
		"folder":          node.folder,
		"watching":        node.state(),
		"shared_watchers": strconv.Itoa(len(w.nodes)),
	})
	return node, nil
}

func (node *sharedWatcher) state() string {
	if node.handle != nil {
		return "self"
	}
	return "parent"
}

// watchSelf acquires a handle when the folder exists. A missing folder is not
// an error; the node keeps following its parent.
func (node *sharedWatcher) watchSelf() error {
	if node.handle != nil {
		return nil
	}
	if !node.owner.fs.FolderExists(node.folder) {
		return nil
	}
	handle, err := node.owner.pool.get(node.folder)
	if err != nil {
		return err
	}
	node.handle = handle
	return nil
}

func (node *sharedWatcher) releaseHandle() {
	if node.handle == nil {
		return
	}
	handle := node.handle
	node.handle = nil
	handle.release()
}

func (node *sharedWatcher) attachToParent() {
	if node.parent == nil {
		return
	}
	node.parentListenerID = node.parent.addListener(node)
	node.followParentHandle()
}

func (node *sharedWatcher) followParentHandle() {
	if node.parent == nil || node.parent.handle == nil || node.parentHandle == node.parent.handle {
		return
	}
	node.unfollowParentHandle()
	node.parentHandle = node.parent.handle
	node.parentHandleID = node.parentHandle.subscribe(node.onParentEvent)
}

func (node *sharedWatcher) unfollowParentHandle() {
	if node.parentHandle == nil {
		return
	}
	node.parentHandle.unsubscribe(node.parentHandleID)
	node.parentHandle = nil
	node.parentHandleID = 0
}

func (node *sharedWatcher) isSelf(path string) bool {
	return path != "" && node.owner.style.Equals(path, node.folder, node.owner.cc, pathutil.RespectAmbiguity)
}

func (node *sharedWatcher) onParentEvent(event RawEvent) {
	switch event.Op {
	case RawCreated:
		if node.isSelf(event.Path) {
			node.selfCreated()
		}
	case RawDeleted:
		if node.isSelf(event.Path) {
			node.selfDeleted()
		}
	case RawRenamed:
		if node.isSelf(event.OldPath) {
			node.selfDeleted()
		}
		if node.isSelf(event.Path) {
			node.selfCreated()
		}
	}
}

func (node *sharedWatcher) selfCreated() {
	if node.handle != nil {
		return
	}
	if err := node.watchSelf(); err != nil {
		node.owner.logger.Warn("shared watcher reacquire failed", map[string]string{
			"folder": node.folder,
			"error":  err.Error(),
		})
		return
	}
	if node.handle != nil {
		node.raiseFolderCreated()
	}
}

func (node *sharedWatcher) selfDeleted() {
	if node.handle == nil {
		return
	}
	node.raiseFolderDeleted()
	node.releaseHandle()
}

// folderCreated is called when the parent's folder appears. This folder may
// have appeared with it.
func (node *sharedWatcher) folderCreated(parent *sharedWatcher) {
	node.followParentHandle()
	node.selfCreated()
}

func (node *sharedWatcher) folderDeleted(parent *sharedWatcher) {
	node.unfollowParentHandle()
	node.selfDeleted()
}

func (node *sharedWatcher) addListener(listener folderListener) uint64 {
	node.nextListenerID++
	node.listeners = append(node.listeners, folderListenerEntry{id: node.nextListenerID, listener: listener})
	return node.nextListenerID
}

func (node *sharedWatcher) removeListener(id uint64) {
	for index, entry := range node.listeners {
		if entry.id == id {
			node.listeners = append(node.listeners[:index], node.listeners[index+1:]...)
			return
		}
	}
}

func (node *sharedWatcher) hasListener(id uint64) bool {
	for _, entry := range node.listeners {
		if entry.id == id {
			return true
		}
	}
	return false
}

func (node *sharedWatcher) raiseFolderCreated() {
	snapshot := append([]folderListenerEntry(nil), node.listeners...)
	for _, entry := range snapshot {
		if node.hasListener(entry.id) {
			entry.listener.folderCreated(node)
		}
	}
}

func (node *sharedWatcher) raiseFolderDeleted() {
	snapshot := append([]folderListenerEntry(nil), node.listeners...)
	for _, entry := range snapshot {
		if node.hasListener(entry.id) {
			entry.listener.folderDeleted(node)
		}
	}
}

// release drops one reference; the last one tears the node down and releases
// its parent in turn.
func (node *sharedWatcher) release() {
	node.refs--
	if node.refs > 0 {
		return
	}

	w := node.owner
	if node.parent != nil {
		node.parent.removeListener(node.parentListenerID)
		node.unfollowParentHandle()
	}
	node.releaseHandle()
	if current, ok := w.nodes[node.key]; ok && current == node {
		delete(w.nodes, node.key)
	}
	w.metrics.IncSharedWatchersRemoved()
	w.logger.Debug("shared watcher removed", map[string]string{
		"folder":          node.folder,
		"shared_watchers": strconv.Itoa(len(w.nodes)),
	})
	if node.parent != nil {
		parent := node.parent
		node.parent = nil
		parent.release()
	}
}
