// Package config loads container configuration and the capability manifest.
// Configuration is layered: built-in defaults, then an optional YAML file,
// then ION_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ION_"

// Provider is the configuration surface for the container. It backs both the
// typed Settings and the key lookup used during capability activation.
type Provider struct {
	k *koanf.Koanf
}

// Load builds a Provider. path may be empty, in which case only defaults and
// environment variables apply.
func Load(path string) (*Provider, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		k.Set(key, value)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// ION_ADMIN_LISTEN -> admin.listen. Capability names containing
	// underscores cannot be addressed through the environment; use the
	// config file for those.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	return &Provider{k: k}, nil
}

// Bool implements the activation lookup: the configured value for key and
// whether the key is present.
func (p *Provider) Bool(key string) (value, ok bool) {
	if !p.k.Exists(key) {
		return false, false
	}
	return p.k.Bool(key), true
}

// Settings unmarshals the typed container settings.
func (p *Provider) Settings() (Settings, error) {
	var s Settings
	if err := p.k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s, nil
}
