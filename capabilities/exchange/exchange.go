// Package exchange implements the exchange management capability: an
// in-process topic broker for declare/publish/subscribe between capabilities
// and container processes.
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.exchange.ExchangeManager"

// Message is one published payload.
type Message struct {
	Topic     string
	Body      []byte
	Published time.Time
}

type subscriber struct {
	ch chan Message
}

// Manager is the in-process exchange. Slow subscribers drop messages rather
// than blocking publishers.
type Manager struct {
	log    *logging.Logger
	buffer int

	mu     sync.RWMutex
	open   bool
	topics map[string][]*subscriber
}

// New returns an unstarted exchange manager.
func New(cfg config.ExchangeSettings, log *logging.Logger) *Manager {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 64
	}
	return &Manager{
		log:    log.WithComponent("exchange"),
		buffer: buffer,
		topics: make(map[string][]*subscriber),
	}
}

// Constructor adapts the manager for the factory registry.
func Constructor(cfg config.ExchangeSettings, log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		return New(cfg, log), nil
	}
}

// Start opens the exchange for traffic.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Stop closes the exchange and every subscriber channel.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil
	}
	m.open = false
	for topic, subs := range m.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(m.topics, topic)
	}
	return nil
}

// Declare ensures a topic exists. Declaring an existing topic is a no-op.
func (m *Manager) Declare(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return fmt.Errorf("exchange closed")
	}
	if _, ok := m.topics[topic]; !ok {
		m.topics[topic] = nil
	}
	return nil
}

// Publish delivers a payload to every current subscriber of the topic.
func (m *Manager) Publish(ctx context.Context, topic string, body []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return fmt.Errorf("exchange closed")
	}

	msg := Message{Topic: topic, Body: body, Published: time.Now()}
	for _, sub := range m.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			m.log.Warnf("dropping message on %s: subscriber buffer full", topic)
		}
	}
	return nil
}

// Subscribe attaches to a topic. The returned cancel function detaches the
// subscriber and closes its channel.
func (m *Manager) Subscribe(topic string) (<-chan Message, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, nil, fmt.Errorf("exchange closed")
	}

	sub := &subscriber{ch: make(chan Message, m.buffer)}
	m.topics[topic] = append(m.topics[topic], sub)

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.topics[topic]
		for i, s := range subs {
			if s == sub {
				m.topics[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, cancel, nil
}

// Topics returns the declared topic names.
func (m *Manager) Topics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topics := make([]string, 0, len(m.topics))
	for topic := range m.topics {
		topics = append(topics, topic)
	}
	return topics
}
