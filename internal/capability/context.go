package capability

import "sync"

// RuntimeContext is the shared registry of live capability instances. It is
// populated by the orchestrator during startup, consulted by later
// capabilities to obtain earlier ones, and drained in reverse during
// teardown. Reads and writes are safe for concurrent same-level starters.
type RuntimeContext struct {
	mu      sync.RWMutex
	byName  map[string]Instance
	byField map[string]Instance
}

// NewRuntimeContext returns an empty context.
func NewRuntimeContext() *RuntimeContext {
	return &RuntimeContext{
		byName:  make(map[string]Instance),
		byField: make(map[string]Instance),
	}
}

// Bind registers an instance under its capability name and, when field is
// non-empty, under the field name as well.
func (rc *RuntimeContext) Bind(name, field string, inst Instance) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.byName[name] = inst
	if field != "" {
		rc.byField[field] = inst
	}
}

// GetByCapability returns the instance bound under a capability name.
func (rc *RuntimeContext) GetByCapability(name string) (Instance, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	inst, ok := rc.byName[name]
	return inst, ok
}

// GetByField returns the instance bound under a field name.
func (rc *RuntimeContext) GetByField(field string) (Instance, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	inst, ok := rc.byField[field]
	return inst, ok
}

// remove drops the bindings for one capability during teardown.
func (rc *RuntimeContext) remove(name, field string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.byName, name)
	if field != "" {
		delete(rc.byField, field)
	}
}

// Names returns the capability names currently bound.
func (rc *RuntimeContext) Names() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	names := make([]string, 0, len(rc.byName))
	for name := range rc.byName {
		names = append(names, name)
	}
	return names
}
