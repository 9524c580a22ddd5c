package config

import "time"

// Settings is the typed container configuration.
type Settings struct {
	Logging   LoggingSettings   `koanf:"logging"`
	Admin     AdminSettings     `koanf:"admin"`
	Lifecycle LifecycleSettings `koanf:"lifecycle"`
	Datastore DatastoreSettings `koanf:"datastore"`
	Cache     CacheSettings     `koanf:"cache"`
	Exchange  ExchangeSettings  `koanf:"exchange"`
}

// LoggingSettings configures the container logger.
type LoggingSettings struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePrefix string `koanf:"file_prefix"`
}

// AdminSettings configures the admin HTTP surface.
type AdminSettings struct {
	Enabled   bool    `koanf:"enabled"`
	Listen    string  `koanf:"listen"`
	RateLimit float64 `koanf:"rate_limit"` // requests per second, 0 disables
}

// LifecycleSettings configures the orchestrator. Timeouts are in seconds;
// zero disables the bound.
type LifecycleSettings struct {
	StartTimeoutSec int  `koanf:"start_timeout_sec"`
	StopTimeoutSec  int  `koanf:"stop_timeout_sec"`
	Sequential      bool `koanf:"sequential"`
}

// StartTimeout returns the per-capability start budget.
func (l LifecycleSettings) StartTimeout() time.Duration {
	return time.Duration(l.StartTimeoutSec) * time.Second
}

// StopTimeout returns the per-capability stop budget.
func (l LifecycleSettings) StopTimeout() time.Duration {
	return time.Duration(l.StopTimeoutSec) * time.Second
}

// DatastoreSettings configures the datastore capability. An empty DSN selects
// the in-memory store.
type DatastoreSettings struct {
	Driver          string `koanf:"driver"`
	DSN             string `koanf:"dsn"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"` // seconds
}

// CacheSettings configures the cache capability. An empty address selects the
// in-process cache.
type CacheSettings struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// ExchangeSettings configures the exchange capability.
type ExchangeSettings struct {
	BufferSize int `koanf:"buffer_size"`
}

func defaults() map[string]any {
	return map[string]any{
		"logging.level":               "info",
		"logging.format":              "text",
		"logging.output":              "stdout",
		"admin.enabled":               true,
		"admin.listen":                ":8090",
		"admin.rate_limit":            50.0,
		"lifecycle.start_timeout_sec": 30,
		"lifecycle.stop_timeout_sec":  10,
		"datastore.driver":            "postgres",
		"exchange.buffer_size":        64,
	}
}
