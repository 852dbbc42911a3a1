// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Pull-based runtime metrics registry. Components register counter
// sources; a snapshot merges them under namespaced keys.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry aggregates counter sources from runtime components.
// A source is a function returning the component's current counters,
// typically the Stats method of a reactor or executor.
type MetricsRegistry struct {
	mu      sync.RWMutex
	sources map[string]func() map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		sources: make(map[string]func() map[string]int64),
	}
}

// RegisterSource attaches a counter source under name. Registering the
// same name twice replaces the source.
func (mr *MetricsRegistry) RegisterSource(name string, fn func() map[string]int64) {
	mr.mu.Lock()
	mr.sources[name] = fn
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Snapshot pulls every source and returns the merged counters keyed as
// "source.counter".
func (mr *MetricsRegistry) Snapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64)
	for name, fn := range mr.sources {
		for k, v := range fn() {
			out[name+"."+k] = v
		}
	}
	return out
}

// LastUpdated reports when the source set last changed.
func (mr *MetricsRegistry) LastUpdated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
