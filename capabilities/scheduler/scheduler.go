// Package scheduler implements the scheduling capability: named cron jobs
// other capabilities can register and remove at runtime.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.scheduler.SchedulerManager"

// Manager wraps a cron runner with named entries.
type Manager struct {
	log *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// New returns an unstarted scheduler.
func New(log *logging.Logger) *Manager {
	return &Manager{
		log:     log.WithComponent("scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Constructor adapts the manager for the factory registry.
func Constructor(log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		return New(log), nil
	}
}

// Start begins the cron runner.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	m.cron = cron.New()
	m.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs still running: %w", ctx.Err())
	}
}

// Schedule registers a named job under a cron expression.
func (m *Manager) Schedule(name, spec string, job func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == nil {
		return fmt.Errorf("scheduler not started")
	}
	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("job %q already scheduled", name)
	}

	id, err := m.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	m.entries[name] = id
	return nil
}

// Remove drops a named job. Removing an unknown name is a no-op.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == nil {
		return
	}
	if id, ok := m.entries[name]; ok {
		m.cron.Remove(id)
		delete(m.entries, name)
	}
}

// Jobs returns the scheduled job names.
func (m *Manager) Jobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}
