package scheduler

import (
	"context"
	"testing"

	"github.com/ion-foundation/capability-container/internal/logging"
)

func startedScheduler(t *testing.T) *Manager {
	t.Helper()
	m := New(logging.NewDefault("test"))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m
}

func TestManager_Schedule(t *testing.T) {
	m := startedScheduler(t)

	if err := m.Schedule("heartbeat", "@every 1h", func() {}); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if jobs := m.Jobs(); len(jobs) != 1 || jobs[0] != "heartbeat" {
		t.Errorf("Jobs() = %v, want [heartbeat]", jobs)
	}
}

func TestManager_ScheduleDuplicate(t *testing.T) {
	m := startedScheduler(t)

	if err := m.Schedule("j", "@every 1h", func() {}); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if err := m.Schedule("j", "@every 1h", func() {}); err == nil {
		t.Error("duplicate job name must fail")
	}
}

func TestManager_ScheduleBadExpression(t *testing.T) {
	m := startedScheduler(t)

	if err := m.Schedule("bad", "not a cron spec", func() {}); err == nil {
		t.Error("invalid cron expression must fail")
	}
	if len(m.Jobs()) != 0 {
		t.Error("failed schedule must not register a job")
	}
}

func TestManager_Remove(t *testing.T) {
	m := startedScheduler(t)

	if err := m.Schedule("j", "@every 1h", func() {}); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	m.Remove("j")
	if len(m.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want empty", m.Jobs())
	}
	// Unknown name is a no-op.
	m.Remove("ghost")
}

func TestManager_ScheduleBeforeStart(t *testing.T) {
	m := New(logging.NewDefault("test"))
	if err := m.Schedule("j", "@every 1h", func() {}); err == nil {
		t.Error("Schedule before Start must fail")
	}
}

func TestManager_StartTwice(t *testing.T) {
	m := startedScheduler(t)
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start must fail")
	}
}

func TestManager_StopBeforeStartIsNoop(t *testing.T) {
	m := New(logging.NewDefault("test"))
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}
