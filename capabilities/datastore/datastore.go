// Package datastore implements the persistent datastore capability. With a
// DSN configured it manages a PostgreSQL connection pool; without one it
// falls back to an in-memory store so the container can run standalone.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ion-foundation/capability-container/internal/capability"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/logging"
)

// ClassRef identifies this capability to the factory registry.
const ClassRef = "ion.datastore.DatastoreManager"

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = fmt.Errorf("datastore: key not found")

// Manager owns the container's datastore connection.
type Manager struct {
	cfg config.DatastoreSettings
	log *logging.Logger

	mu  sync.RWMutex
	db  *sqlx.DB
	mem map[string][]byte
}

// New returns an unstarted datastore manager.
func New(cfg config.DatastoreSettings, log *logging.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.WithComponent("datastore"),
	}
}

// Constructor adapts the manager for the factory registry.
func Constructor(cfg config.DatastoreSettings, log *logging.Logger) capability.Constructor {
	return func(ctx context.Context, rc *capability.RuntimeContext) (capability.Instance, error) {
		return New(cfg, log), nil
	}
}

// Start opens and verifies the connection, or initialises the in-memory
// fallback when no DSN is configured.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.DSN == "" {
		m.log.Warn("no DSN configured; using in-memory datastore")
		m.mu.Lock()
		m.mem = make(map[string][]byte)
		m.mu.Unlock()
		return nil
	}

	driver := m.cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sqlx.Open(driver, m.cfg.DSN)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(m.cfg.ConnMaxLifetime) * time.Second)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping datastore: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS kv_entries (key TEXT PRIMARY KEY, value BYTEA NOT NULL, updated_at TIMESTAMPTZ NOT NULL)`); err != nil {
		db.Close()
		return fmt.Errorf("prepare kv table: %w", err)
	}

	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return nil
}

// Stop closes the connection pool.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.mem = nil
	m.mu.Unlock()

	if db != nil {
		return db.Close()
	}
	return nil
}

// DB exposes the underlying pool. Nil in memory mode.
func (m *Manager) DB() *sqlx.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Put stores a value under key.
func (m *Manager) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	db, mem := m.db, m.mem
	if db == nil && mem != nil {
		buf := make([]byte, len(value))
		copy(buf, value)
		mem[key] = buf
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if db == nil {
		return fmt.Errorf("datastore not started")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

// Get retrieves the value stored under key.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	db, mem := m.db, m.mem
	m.mu.RUnlock()

	if db == nil {
		if mem == nil {
			return nil, fmt.Errorf("datastore not started")
		}
		m.mu.RLock()
		value, ok := mem[key]
		m.mu.RUnlock()
		if !ok {
			return nil, ErrNotFound
		}
		buf := make([]byte, len(value))
		copy(buf, value)
		return buf, nil
	}

	var value []byte
	err := db.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return value, err
}
