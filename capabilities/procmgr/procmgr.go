// Package procmgr implements the process management capability: supervision
// of container worker goroutines and a heartbeat snapshot of the host
// process.
package procmgr

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.process.ProcManager"

// Health is a heartbeat snapshot of the container process.
type Health struct {
	Goroutines int     `json:"goroutines"`
	Workers    int     `json:"workers"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	Uptime     string  `json:"uptime"`
}

// Manager supervises named worker goroutines for other capabilities.
type Manager struct {
	log *logging.Logger

	mu      sync.Mutex
	proc    *process.Process
	workers map[string]struct{}
	wg      sync.WaitGroup
	runCtx  context.Context
	cancel  context.CancelFunc
	started time.Time
}

// New returns an unstarted process manager.
func New(log *logging.Logger) *Manager {
	return &Manager{
		log:     log.WithComponent("procmgr"),
		workers: make(map[string]struct{}),
	}
}

// Constructor adapts the manager for the factory registry.
func Constructor(log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		return New(log), nil
	}
}

// Start attaches to the host process and opens the worker supervisor.
func (m *Manager) Start(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("attach host process: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.proc = proc
	m.started = time.Now()
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	return nil
}

// Stop cancels all workers and waits for them to exit, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workers did not exit: %w", ctx.Err())
	}
}

// Spawn runs fn as a supervised worker. The worker receives a context that is
// cancelled when the manager stops. Worker errors are logged, not fatal.
func (m *Manager) Spawn(name string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return fmt.Errorf("process manager not started")
	}
	if _, exists := m.workers[name]; exists {
		return fmt.Errorf("worker %q already running", name)
	}
	m.workers[name] = struct{}{}

	runCtx := m.runCtx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.workers, name)
			m.mu.Unlock()
		}()
		if err := fn(runCtx); err != nil && runCtx.Err() == nil {
			m.log.WithError(err).Warnf("worker %s exited with error", name)
		}
	}()
	return nil
}

// Heartbeat returns a liveness snapshot of the container process.
func (m *Manager) Heartbeat(ctx context.Context) (Health, error) {
	m.mu.Lock()
	proc := m.proc
	workers := len(m.workers)
	started := m.started
	m.mu.Unlock()

	if proc == nil {
		return Health{}, fmt.Errorf("process manager not started")
	}

	h := Health{
		Goroutines: runtime.NumGoroutine(),
		Workers:    workers,
		Uptime:     time.Since(started).Round(time.Second).String(),
	}
	if cpu, err := proc.PercentWithContext(ctx, 0); err == nil {
		h.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		h.MemoryRSS = mem.RSS
	}
	return h, nil
}
