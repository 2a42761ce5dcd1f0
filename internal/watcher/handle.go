package watcher

// watchHandle wraps one native registration. It is reference counted by the
// shared watchers that acquired it; any number of listeners may observe it.
// All fields are guarded by the owning PathWatcher's mutex.
type watchHandle struct {
	key          string
	folder       string
	recursive    bool
	refs         int
	registration Registration
	enabled      bool
	disposed     bool
	listeners    []handleListener
	nextID       uint64
	onReleased   func(handle *watchHandle, err error)
}

type handleListener struct {
	id uint64
	fn func(RawEvent)
}

func (handle *watchHandle) increment() {
	handle.refs++
}

// release drops one reference. The last release disables and closes the
// native registration and fires onReleased exactly once.
func (handle *watchHandle) release() {
	if handle.disposed {
		return
	}
	handle.refs--
	if handle.refs > 0 {
		return
	}

	handle.disposed = true
	handle.enabled = false
	handle.listeners = nil
	var err error
	if handle.registration != nil {
		handle.registration.SetEnabled(false)
		err = handle.registration.Close()
	}
	if handle.onReleased != nil {
		handle.onReleased(handle, err)
	}
}

func (handle *watchHandle) subscribe(fn func(RawEvent)) uint64 {
	handle.nextID++
	handle.listeners = append(handle.listeners, handleListener{id: handle.nextID, fn: fn})
	return handle.nextID
}

func (handle *watchHandle) unsubscribe(id uint64) {
	for index, listener := range handle.listeners {
		if listener.id == id {
			handle.listeners = append(handle.listeners[:index], handle.listeners[index+1:]...)
			return
		}
	}
}

func (handle *watchHandle) hasListener(id uint64) bool {
	for _, listener := range handle.listeners {
		if listener.id == id {
			return true
		}
	}
	return false
}

// emit calls every listener registered when the event arrived, skipping any
// that an earlier listener removed.
func (handle *watchHandle) emit(event RawEvent) {
	if handle.disposed || !handle.enabled {
		return
	}
	snapshot := append([]handleListener(nil), handle.listeners...)
	for _, listener := range snapshot {
		if handle.disposed {
			return
		}
		if handle.hasListener(listener.id) {
			listener.fn(event)
		}
	}
}
