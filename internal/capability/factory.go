package capability

import (
	"context"
	"fmt"
	"sync"
)

// Instance is a live capability. Constructors return a fully configured but
// not yet started instance; the orchestrator drives Start and Stop.
type Instance interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Constructor builds a capability instance. The RuntimeContext carries every
// capability already started, so constructors can look up their dependencies
// by field or capability name.
type Constructor func(ctx context.Context, rc *RuntimeContext) (Instance, error)

// Factory resolves a class reference to a capability instance. Implementations
// are supplied by the caller; the engine never performs dynamic type lookup.
type Factory interface {
	New(ctx context.Context, classRef string, rc *RuntimeContext) (Instance, error)
}

// FactoryRegistry maps class references to constructors registered explicitly
// at startup.
type FactoryRegistry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactoryRegistry returns an empty factory registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{constructors: make(map[string]Constructor)}
}

// Register binds a constructor to a class reference. Re-registering a class
// reference is an error.
func (f *FactoryRegistry) Register(classRef string, ctor Constructor) error {
	if classRef == "" {
		return fmt.Errorf("factory: empty class reference")
	}
	if ctor == nil {
		return fmt.Errorf("factory: nil constructor for %q", classRef)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.constructors[classRef]; exists {
		return fmt.Errorf("factory: class %q already registered", classRef)
	}
	f.constructors[classRef] = ctor
	return nil
}

// New constructs an instance for the class reference.
func (f *FactoryRegistry) New(ctx context.Context, classRef string, rc *RuntimeContext) (Instance, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[classRef]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("factory: class %q not registered", classRef)
	}
	return ctor(ctx, rc)
}

// Known reports whether a class reference has a registered constructor.
func (f *FactoryRegistry) Known(classRef string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[classRef]
	return ok
}

// InstanceFunc adapts start and stop closures to the Instance interface.
// Either hook may be nil.
type InstanceFunc struct {
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (i InstanceFunc) Start(ctx context.Context) error {
	if i.StartFunc == nil {
		return nil
	}
	return i.StartFunc(ctx)
}

func (i InstanceFunc) Stop(ctx context.Context) error {
	if i.StopFunc == nil {
		return nil
	}
	return i.StopFunc(ctx)
}
