package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/logging"
)

func startedManager(t *testing.T) *Manager {
	t.Helper()
	m := New(config.ExchangeSettings{BufferSize: 4}, logging.NewDefault("test"))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return m
}

func TestManager_PublishSubscribe(t *testing.T) {
	m := startedManager(t)
	defer m.Stop(context.Background())

	ch, cancel, err := m.Subscribe("events")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer cancel()

	if err := m.Publish(context.Background(), "events", []byte("hello")); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg.Body) != "hello" || msg.Topic != "events" {
			t.Errorf("got %q on %q", msg.Body, msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestManager_PublishWithoutSubscribers(t *testing.T) {
	m := startedManager(t)
	defer m.Stop(context.Background())

	if err := m.Publish(context.Background(), "empty", []byte("x")); err != nil {
		t.Errorf("Publish() to empty topic: %v", err)
	}
}

func TestManager_SlowSubscriberDropsMessages(t *testing.T) {
	m := startedManager(t)
	defer m.Stop(context.Background())

	ch, cancel, err := m.Subscribe("busy")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer cancel()

	// Buffer is 4; overfill and verify publishers never block.
	for i := 0; i < 10; i++ {
		if err := m.Publish(context.Background(), "busy", []byte("m")); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != 4 {
				t.Errorf("received = %d, want 4 (buffer size)", received)
			}
			return
		}
	}
}

func TestManager_CancelDetachesSubscriber(t *testing.T) {
	m := startedManager(t)
	defer m.Stop(context.Background())

	ch, cancel, err := m.Subscribe("events")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	// Cancelling twice is safe.
	cancel()
}

func TestManager_Declare(t *testing.T) {
	m := startedManager(t)
	defer m.Stop(context.Background())

	if err := m.Declare("a"); err != nil {
		t.Fatalf("Declare() error: %v", err)
	}
	if err := m.Declare("a"); err != nil {
		t.Fatalf("re-Declare() error: %v", err)
	}
	if topics := m.Topics(); len(topics) != 1 || topics[0] != "a" {
		t.Errorf("Topics() = %v, want [a]", topics)
	}
}

func TestManager_ClosedExchangeRejects(t *testing.T) {
	m := New(config.ExchangeSettings{}, logging.NewDefault("test"))

	if err := m.Declare("a"); err == nil {
		t.Error("Declare before Start must fail")
	}
	if err := m.Publish(context.Background(), "a", nil); err == nil {
		t.Error("Publish before Start must fail")
	}
	if _, _, err := m.Subscribe("a"); err == nil {
		t.Error("Subscribe before Start must fail")
	}
}

func TestManager_StopClosesSubscribers(t *testing.T) {
	m := startedManager(t)
	ch, _, err := m.Subscribe("events")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed on Stop")
	}
	// Second Stop is a no-op.
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}
