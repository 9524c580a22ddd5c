package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ion-foundation/capability-container/internal/logging"
)

// State tracks one capability through its lifecycle. Failed is terminal and
// reachable only from Starting; a Failed capability never reaches Started and
// is excluded from teardown.
type State string

const (
	StatePending  State = "pending"
	StateStarting State = "starting"
	StateStarted  State = "started"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Hooks receives lifecycle observations. All fields are optional.
type Hooks struct {
	// OnStateChange fires on every per-capability state transition.
	OnStateChange func(capability string, state State)

	// OnStart fires after a start attempt completes, err nil on success.
	OnStart func(capability string, elapsed time.Duration, err error)

	// OnStop fires after a stop attempt completes.
	OnStop func(capability string, elapsed time.Duration, err error)
}

// Options configures an Orchestrator.
type Options struct {
	// StartTimeout bounds each capability start. Zero disables the bound.
	StartTimeout time.Duration

	// StopTimeout bounds each capability stop. Zero disables the bound.
	StopTimeout time.Duration

	// Sequential forces one-at-a-time starts even for capabilities at the
	// same topological depth.
	Sequential bool

	Hooks  Hooks
	Logger *logging.Logger
}

// Orchestrator drives capability instantiation and teardown in plan order,
// maintaining the rollback path on failure. One orchestrator handles one
// container run: Start may be called once, Stop once after it.
type Orchestrator struct {
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	states  map[string]State
	fields  map[string]string
	begun   bool
	stopped bool
}

// NewOrchestrator returns an orchestrator with the given options.
func NewOrchestrator(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = logging.NewDefault("orchestrator")
	}
	return &Orchestrator{
		opts:   opts,
		log:    log,
		states: make(map[string]State),
		fields: make(map[string]string),
	}
}

// StateOf returns the lifecycle state of a capability. Capabilities the
// orchestrator has not touched are Pending.
func (o *Orchestrator) StateOf(name string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[name]; ok {
		return s
	}
	return StatePending
}

func (o *Orchestrator) setState(name string, s State) {
	o.mu.Lock()
	o.states[name] = s
	o.mu.Unlock()
	if o.opts.Hooks.OnStateChange != nil {
		o.opts.Hooks.OnStateChange(name, s)
	}
}

// Start instantiates the planned capabilities into a fresh RuntimeContext.
// Capabilities at the same topological depth start concurrently unless
// Sequential is set; the returned order is completion order, which reverse
// teardown must follow. On failure every already-started capability is torn
// down in reverse completion order and a StartError aggregating the cause
// with any rollback errors is returned; the partial context is discarded.
func (o *Orchestrator) Start(ctx context.Context, plan *Plan, reg *Registry, factory Factory) (*RuntimeContext, []string, error) {
	o.mu.Lock()
	if o.begun {
		o.mu.Unlock()
		return nil, nil, fmt.Errorf("orchestrator: already started")
	}
	o.begun = true
	for _, name := range plan.order {
		o.states[name] = StatePending
		if spec, ok := reg.Spec(name); ok {
			o.fields[name] = spec.Field
		}
	}
	o.mu.Unlock()

	rc := NewRuntimeContext()
	started := make([]string, 0, len(plan.order))

	var (
		startedMu sync.Mutex
		errMu     sync.Mutex
		firstErr  error
	)

	startOne := func(name string) {
		spec, _ := reg.Spec(name)
		o.setState(name, StateStarting)
		o.log.Debugf("starting capability %s", name)

		begin := time.Now()
		inst, err := o.instantiate(ctx, spec, rc, factory)
		elapsed := time.Since(begin)
		if o.opts.Hooks.OnStart != nil {
			o.opts.Hooks.OnStart(name, elapsed, err)
		}

		if err != nil {
			o.setState(name, StateFailed)
			o.log.WithError(err).Errorf("capability %s failed to start", name)
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return
		}

		// Bind before recording completion so a sibling that observes the
		// start order can always resolve the instance.
		rc.Bind(name, spec.Field, inst)
		startedMu.Lock()
		started = append(started, name)
		startedMu.Unlock()
		o.setState(name, StateStarted)
		o.log.Infof("capability %s started in %s", name, elapsed.Round(time.Millisecond))
	}

	for _, level := range plan.levels {
		errMu.Lock()
		failed := firstErr != nil
		errMu.Unlock()
		if failed {
			// A shallower level failed; no deeper capability starts.
			break
		}

		if o.opts.Sequential || len(level) == 1 {
			for _, name := range level {
				errMu.Lock()
				failed := firstErr != nil
				errMu.Unlock()
				if failed {
					break
				}
				startOne(name)
			}
			continue
		}

		var wg sync.WaitGroup
		for _, name := range level {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				startOne(name)
			}(name)
		}
		wg.Wait()
	}

	if firstErr != nil {
		teardown := o.stopSequence(ctx, rc, started)
		if len(teardown) > 0 {
			o.log.Warnf("rollback completed with %d teardown error(s)", len(teardown))
		}
		return nil, nil, &StartError{Cause: firstErr, Teardown: teardown}
	}

	return rc, started, nil
}

// Stop tears down capabilities in reverse of their actual start order.
// Teardown is best effort: every capability is attempted and per-capability
// errors are collected for diagnostics rather than short-circuiting.
func (o *Orchestrator) Stop(ctx context.Context, rc *RuntimeContext, startedOrder []string) []error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	o.mu.Unlock()

	return o.stopSequence(ctx, rc, startedOrder)
}

func (o *Orchestrator) stopSequence(ctx context.Context, rc *RuntimeContext, startedOrder []string) []error {
	var errs []error
	for i := len(startedOrder) - 1; i >= 0; i-- {
		name := startedOrder[i]
		inst, ok := rc.GetByCapability(name)
		if !ok {
			continue
		}

		o.setState(name, StateStopping)
		begin := time.Now()
		err := o.terminate(ctx, name, inst)
		elapsed := time.Since(begin)
		if o.opts.Hooks.OnStop != nil {
			o.opts.Hooks.OnStop(name, elapsed, err)
		}

		o.mu.Lock()
		field := o.fields[name]
		o.mu.Unlock()
		rc.remove(name, field)
		o.setState(name, StateStopped)

		if err != nil {
			o.log.WithError(err).Warnf("capability %s teardown failed", name)
			errs = append(errs, &TeardownError{Capability: name, Err: err})
			continue
		}
		o.log.Infof("capability %s stopped", name)
	}
	return errs
}

// instantiate constructs and starts one capability under the start timeout.
// Factories and instances are not trusted to honor context cancellation, so
// the budget is enforced from outside.
func (o *Orchestrator) instantiate(ctx context.Context, spec Spec, rc *RuntimeContext, factory Factory) (Instance, error) {
	cctx := ctx
	if o.opts.StartTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.opts.StartTimeout)
		defer cancel()
	}

	type result struct {
		inst Instance
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		inst, err := factory.New(cctx, spec.ClassRef, rc)
		if err == nil && inst == nil {
			err = fmt.Errorf("factory returned no instance for class %q", spec.ClassRef)
		}
		if err == nil {
			err = inst.Start(cctx)
		}
		ch <- result{inst: inst, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &InstantiationError{Capability: spec.Name, Err: r.err}
		}
		return r.inst, nil
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Capability: spec.Name, Op: "start", Timeout: o.opts.StartTimeout}
		}
		return nil, &InstantiationError{Capability: spec.Name, Err: cctx.Err()}
	}
}

// terminate stops one capability under the stop timeout.
func (o *Orchestrator) terminate(ctx context.Context, name string, inst Instance) error {
	cctx := ctx
	if o.opts.StopTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.opts.StopTimeout)
		defer cancel()
	}

	ch := make(chan error, 1)
	go func() { ch <- inst.Stop(cctx) }()

	select {
	case err := <-ch:
		return err
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{Capability: name, Op: "stop", Timeout: o.opts.StopTimeout}
		}
		return cctx.Err()
	}
}
