// Package metrics keeps process-local counters for the watch graph and renders
// them in the Prometheus text format. A nil *Registry is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	handlesCreated        atomic.Int64
	handlesDisposed       atomic.Int64
	sharedWatchersCreated atomic.Int64
	sharedWatchersRemoved atomic.Int64
	subscriptionsActive   atomic.Int64
	nativeErrors          atomic.Int64
	eventsDropped         atomic.Int64
	notifications         sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) IncHandlesCreated() {
	if r == nil {
		return
	}
	r.handlesCreated.Add(1)
}

func (r *Registry) IncHandlesDisposed() {
	if r == nil {
		return
	}
	r.handlesDisposed.Add(1)
}

func (r *Registry) IncSharedWatchersCreated() {
	if r == nil {
		return
	}
	r.sharedWatchersCreated.Add(1)
}

func (r *Registry) IncSharedWatchersRemoved() {
	if r == nil {
		return
	}
	r.sharedWatchersRemoved.Add(1)
}

func (r *Registry) AddSubscriptions(delta int64) {
	if r == nil {
		return
	}
	r.subscriptionsActive.Add(delta)
}

func (r *Registry) IncNativeErrors() {
	if r == nil {
		return
	}
	r.nativeErrors.Add(1)
}

func (r *Registry) IncEventsDropped() {
	if r == nil {
		return
	}
	r.eventsDropped.Add(1)
}

// RecordNotification counts one delivered notification of the given change type.
func (r *Registry) RecordNotification(change string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(change) == "" {
		change = "unknown"
	}
	value, _ := r.notifications.LoadOrStore(change, &atomic.Int64{})
	value.(*atomic.Int64).Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	HandlesCreated        int64
	HandlesDisposed       int64
	SharedWatchersCreated int64
	SharedWatchersRemoved int64
	SubscriptionsActive   int64
	NativeErrors          int64
	EventsDropped         int64
	Notifications         map[string]int64
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		HandlesCreated:        r.handlesCreated.Load(),
		HandlesDisposed:       r.handlesDisposed.Load(),
		SharedWatchersCreated: r.sharedWatchersCreated.Load(),
		SharedWatchersRemoved: r.sharedWatchersRemoved.Load(),
		SubscriptionsActive:   r.subscriptionsActive.Load(),
		NativeErrors:          r.nativeErrors.Load(),
		EventsDropped:         r.eventsDropped.Load(),
		Notifications:         map[string]int64{},
	}
	r.notifications.Range(func(key, value any) bool {
		snapshot.Notifications[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return snapshot
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}
	snapshot := r.Snapshot()

	writeCounter(writer, "pathwatch_handles_created_total", "Native watch handles created", snapshot.HandlesCreated)
	writeCounter(writer, "pathwatch_handles_disposed_total", "Native watch handles disposed", snapshot.HandlesDisposed)
	writeGauge(writer, "pathwatch_handles_active", "Native watch handles currently open", snapshot.HandlesCreated-snapshot.HandlesDisposed)
	writeCounter(writer, "pathwatch_shared_watchers_created_total", "Shared watchers created", snapshot.SharedWatchersCreated)
	writeCounter(writer, "pathwatch_shared_watchers_removed_total", "Shared watchers torn down", snapshot.SharedWatchersRemoved)
	writeGauge(writer, "pathwatch_subscriptions_active", "Registered path subscriptions", snapshot.SubscriptionsActive)
	writeCounter(writer, "pathwatch_native_errors_total", "Errors reported by the native notification source", snapshot.NativeErrors)
	writeCounter(writer, "pathwatch_events_dropped_total", "Native events received after their handle was released", snapshot.EventsDropped)

	changes := make([]string, 0, len(snapshot.Notifications))
	for change := range snapshot.Notifications {
		changes = append(changes, change)
	}
	sort.Strings(changes)

	writeHelp(writer, "pathwatch_notifications_total", "Notifications delivered to handlers")
	fmt.Fprintln(writer, "# TYPE pathwatch_notifications_total counter")
	for _, change := range changes {
		fmt.Fprintf(writer, "pathwatch_notifications_total{change=%s} %d\n", formatLabel(change), snapshot.Notifications[change])
	}
	return nil
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func writeGauge(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
