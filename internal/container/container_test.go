package container

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
)

type mapConfig map[string]bool

func (m mapConfig) Bool(key string) (bool, bool) {
	v, ok := m[key]
	return v, ok
}

// stubInstance records start/stop calls and can fail starting.
type stubInstance struct {
	mu       sync.Mutex
	started  int
	stopped  int
	startErr error
}

func (s *stubInstance) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}

func (s *stubInstance) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *stubInstance) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}

func testSettings() config.Settings {
	var s config.Settings
	s.Lifecycle.Sequential = true
	return s
}

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg, err := capability.NewRegistry([]capability.Spec{
		{Name: "store", ClassRef: "test.Store", Field: "datastore"},
		{Name: "registry", ClassRef: "test.Registry", Field: "resource_registry", DependsOn: []string{"store"}},
	})
	require.NoError(t, err)
	return reg
}

func registerStub(t *testing.T, c *Container, classRef string, inst *stubInstance) {
	t.Helper()
	err := c.Factories().Register(classRef, func(context.Context, *capability.RuntimeContext) (capability.Instance, error) {
		return inst, nil
	})
	require.NoError(t, err)
}

func TestContainer_StartStop(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	store := &stubInstance{}
	registry := &stubInstance{}
	registerStub(t, c, "test.Store", store)
	registerStub(t, c, "test.Registry", registry)

	require.Equal(t, StateCreated, c.State())
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRunning, c.State())
	assert.NotNil(t, c.RuntimeContext())

	_, ok := c.RuntimeContext().GetByField("datastore")
	assert.True(t, ok, "store should be bound by field")

	errs := c.Stop(context.Background())
	assert.Empty(t, errs)
	assert.Equal(t, StateStopped, c.State())

	started, stopped := store.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

func TestContainer_StartTwice(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	registerStub(t, c, "test.Store", &stubInstance{})
	registerStub(t, c, "test.Registry", &stubInstance{})

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	c.Stop(context.Background())
}

func TestContainer_MissingFactory(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	registerStub(t, c, "test.Store", &stubInstance{})

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.Registry")
	assert.Equal(t, StateStopped, c.State())
}

func TestContainer_StartFailureRollsBack(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	store := &stubInstance{}
	registerStub(t, c, "test.Store", store)
	registerStub(t, c, "test.Registry", &stubInstance{startErr: errors.New("boom")})

	err := c.Start(context.Background())
	var serr *capability.StartError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StateStopped, c.State())
	assert.Nil(t, c.RuntimeContext())

	started, stopped := store.counts()
	assert.Equal(t, 1, started, "store started before the failure")
	assert.Equal(t, 1, stopped, "store rolled back")
}

func TestContainer_DisabledCapabilitySkipped(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{
		"container.registry.enabled": false,
	}, nil)
	store := &stubInstance{}
	registry := &stubInstance{}
	registerStub(t, c, "test.Store", store)
	registerStub(t, c, "test.Registry", registry)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	started, _ := registry.counts()
	assert.Zero(t, started, "disabled capability must not start")

	status := c.Status()
	assert.Equal(t, []string{"store"}, status.Plan)
}

func TestContainer_DisabledDependencyFailsStart(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{
		"container.store.enabled": false,
	}, nil)
	registerStub(t, c, "test.Store", &stubInstance{})
	registerStub(t, c, "test.Registry", &stubInstance{})

	err := c.Start(context.Background())
	var derr *capability.DisabledDependencyError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "registry", derr.Capability)
	assert.Equal(t, "store", derr.Dependency)
}

func TestContainer_Status(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	registerStub(t, c, "test.Store", &stubInstance{})
	registerStub(t, c, "test.Registry", &stubInstance{})

	status := c.Status()
	assert.Equal(t, StateCreated, status.State)
	require.Len(t, status.Capabilities, 2)
	assert.Equal(t, capability.StatePending, status.Capabilities[0].State)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	status = c.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.Equal(t, []string{"store", "registry"}, status.Plan)
	for _, cs := range status.Capabilities {
		assert.True(t, cs.Enabled)
		assert.Equal(t, capability.StateStarted, cs.State)
	}
}

func TestContainer_StopBeforeStartIsNoop(t *testing.T) {
	c := New(testSettings(), testRegistry(t), mapConfig{}, nil)
	assert.Nil(t, c.Stop(context.Background()))
	assert.Equal(t, StateCreated, c.State())
}
