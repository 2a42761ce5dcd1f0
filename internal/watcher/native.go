package watcher

// RawOp is a change reported by the native notification source.
type RawOp int

const (
	RawChanged RawOp = iota + 1
	RawCreated
	RawDeleted
	// RawRenamed carries both OldPath and Path.
	RawRenamed
)

func (op RawOp) String() string {
	switch op {
	case RawChanged:
		return "changed"
	case RawCreated:
		return "created"
	case RawDeleted:
		return "deleted"
	case RawRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// RawEvent is one native notification with absolute paths.
type RawEvent struct {
	Op      RawOp
	Path    string
	OldPath string
}

// Registration is one native watch on a folder.
type Registration interface {
	// SetEnabled pauses or resumes delivery to the sink.
	SetEnabled(enabled bool)
	// Close releases the native resource. No events are delivered afterwards.
	Close() error
}

// Native is the OS change-notification primitive. A non-recursive watch
// reports changes to the direct children of folder; a recursive watch reports
// changes anywhere below it. The sink may be called from any goroutine, but
// events for one registration arrive in native order.
type Native interface {
	Watch(folder string, recursive bool, sink func(RawEvent)) (Registration, error)
}
