// Package cache implements the cache capability. With an address configured
// it fronts Redis; without one it keeps an in-process map with expiry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.cache.CacheManager"

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Manager is the cache facet of the container.
type Manager struct {
	cfg config.CacheSettings
	log *logging.Logger

	mu      sync.RWMutex
	client  *redis.Client
	entries map[string]*entry
}

// New returns an unstarted cache manager.
func New(cfg config.CacheSettings, log *logging.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.WithComponent("cache"),
	}
}

// Constructor adapts the manager for the factory registry.
func Constructor(cfg config.CacheSettings, log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		return New(cfg, log), nil
	}
}

// Start connects to Redis, or initialises the in-process cache when no
// address is configured.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.Addr == "" {
		m.log.Warn("no redis address configured; using in-process cache")
		m.mu.Lock()
		m.entries = make(map[string]*entry)
		m.mu.Unlock()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     m.cfg.Addr,
		Password: m.cfg.Password,
		DB:       m.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	return nil
}

// Stop releases the client or the in-process map.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.entries = nil
	m.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// Set stores a value with an optional TTL. Zero TTL means no expiry.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.RLock()
	client, entries := m.client, m.entries
	m.mu.RUnlock()

	if client != nil {
		return client.Set(ctx, key, value, ttl).Err()
	}
	if entries == nil {
		return fmt.Errorf("cache not started")
	}

	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	if m.entries != nil {
		m.entries[key] = e
	}
	m.mu.Unlock()
	return nil
}

// Get returns the value for key, or nil when absent or expired.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	client, entries := m.client, m.entries
	var e *entry
	var ok bool
	if client == nil && entries != nil {
		e, ok = entries[key]
	}
	m.mu.RUnlock()

	if client != nil {
		value, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		return value, err
	}
	if entries == nil {
		return nil, fmt.Errorf("cache not started")
	}

	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

// GetInto unmarshals the cached JSON value for key into dest.
func (m *Manager) GetInto(ctx context.Context, key string, dest any) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("cache key not found: %s", key)
	}
	return json.Unmarshal(data, dest)
}
