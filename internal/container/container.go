// Package container assembles the capability container: manifest, activation
// configuration, factories, and the lifecycle orchestrator.
package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/logging"
	"github.com/ion-foundation/capability-container/internal/metrics"
)

// State represents the container state.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Container owns one run of the capability container.
type Container struct {
	mu sync.RWMutex

	id        string
	state     State
	settings  config.Settings
	log       *logging.Logger
	registry  *capability.Registry
	provider  capability.ConfigProvider
	factories *capability.FactoryRegistry
	orch      *capability.Orchestrator

	activation capability.Activation
	plan       *capability.Plan
	runtime    *capability.RuntimeContext
	started    []string
}

// New creates a container from a validated manifest registry and a
// configuration provider.
func New(settings config.Settings, registry *capability.Registry, provider capability.ConfigProvider, log *logging.Logger) *Container {
	if log == nil {
		log = logging.NewDefault("container")
	}
	return &Container{
		id:        uuid.NewString(),
		state:     StateCreated,
		settings:  settings,
		log:       log,
		registry:  registry,
		provider:  provider,
		factories: capability.NewFactoryRegistry(),
	}
}

// ID returns the container run identifier.
func (c *Container) ID() string { return c.id }

// State returns the current container state.
func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Factories exposes the factory registry for capability registration. All
// registration must happen before Start.
func (c *Container) Factories() *capability.FactoryRegistry {
	return c.factories
}

// RuntimeContext returns the live capability context, nil before Start.
func (c *Container) RuntimeContext() *capability.RuntimeContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runtime
}

func (c *Container) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start resolves activation and the dependency plan, then drives capability
// startup. On failure the orchestrator has already rolled back and the
// container does not run.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		return fmt.Errorf("container already started (state: %s)", c.state)
	}
	c.state = StateStarting
	c.mu.Unlock()

	activation := capability.ResolveActivation(c.registry, c.provider, nil)

	plan, err := capability.ResolvePlan(c.registry, activation)
	if err != nil {
		c.setState(StateStopped)
		return err
	}

	for _, name := range plan.Order() {
		spec, _ := c.registry.Spec(name)
		if !c.factories.Known(spec.ClassRef) {
			c.setState(StateStopped)
			return fmt.Errorf("no factory registered for class %q (capability %q)", spec.ClassRef, name)
		}
	}

	c.log.Infof("starting container %s with %d of %d capabilities", c.id, len(plan.Order()), c.registry.Len())

	orch := capability.NewOrchestrator(capability.Options{
		StartTimeout: c.settings.Lifecycle.StartTimeout(),
		StopTimeout:  c.settings.Lifecycle.StopTimeout(),
		Sequential:   c.settings.Lifecycle.Sequential,
		Logger:       c.log.WithComponent("orchestrator"),
		Hooks: capability.Hooks{
			OnStart: func(name string, elapsed time.Duration, err error) {
				metrics.RecordCapabilityStart(name, elapsed, err)
			},
			OnStop: func(name string, _ time.Duration, err error) {
				metrics.RecordCapabilityStop(name, err)
			},
		},
	})

	runtime, started, err := orch.Start(ctx, plan, c.registry, c.factories)
	if err != nil {
		metrics.RecordRollback()
		c.setState(StateStopped)
		return err
	}

	c.mu.Lock()
	c.orch = orch
	c.activation = activation
	c.plan = plan
	c.runtime = runtime
	c.started = started
	c.state = StateRunning
	c.mu.Unlock()

	c.log.Infof("container %s running", c.id)
	return nil
}

// Stop tears down all started capabilities in reverse start order. Teardown
// errors are logged and returned for diagnostics; they never abort the pass.
func (c *Container) Stop(ctx context.Context) []error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	orch := c.orch
	runtime := c.runtime
	started := c.started
	c.mu.Unlock()

	errs := orch.Stop(ctx, runtime, started)
	for _, err := range errs {
		c.log.WithError(err).Warn("capability teardown error")
	}

	c.setState(StateStopped)
	c.log.Infof("container %s stopped", c.id)
	return errs
}

// CapabilityStatus describes one declared capability in a status snapshot.
type CapabilityStatus struct {
	Name    string           `json:"name"`
	Doc     string           `json:"doc,omitempty"`
	Field   string           `json:"field,omitempty"`
	Enabled bool             `json:"enabled"`
	State   capability.State `json:"state"`
}

// Status is a point-in-time snapshot of the container.
type Status struct {
	ID           string             `json:"id"`
	State        State              `json:"state"`
	Plan         []string           `json:"plan,omitempty"`
	Capabilities []CapabilityStatus `json:"capabilities"`
}

// Status reports the container and per-capability state.
func (c *Container) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		ID:    c.id,
		State: c.state,
	}
	if c.plan != nil {
		status.Plan = c.plan.Order()
	}

	for _, spec := range c.registry.Specs() {
		cs := CapabilityStatus{
			Name:  spec.Name,
			Doc:   spec.Doc,
			Field: spec.Field,
			State: capability.StatePending,
		}
		if c.orch != nil {
			cs.Enabled = c.activation.Enabled(spec.Name)
			cs.State = c.orch.StateOf(spec.Name)
		}
		status.Capabilities = append(status.Capabilities, cs)
	}
	return status
}
