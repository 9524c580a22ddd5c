package capability

// ConfigProvider is the key to boolean lookup consulted during activation
// resolution. It is read exactly once per capability.
type ConfigProvider interface {
	// Bool returns the configured value for key and whether the key is
	// present at all.
	Bool(key string) (value, ok bool)
}

// KeyFunc derives the activation configuration key for a capability name.
type KeyFunc func(name string) string

// DefaultEnabledKey is the conventional activation key for a capability.
func DefaultEnabledKey(name string) string {
	return "container." + name + ".enabled"
}

// Activation is the enabled/disabled decision per capability, computed once
// per run and treated as immutable afterwards.
type Activation struct {
	enabled map[string]bool
}

// Enabled reports whether the named capability is active. Unknown names are
// disabled.
func (a Activation) Enabled(name string) bool {
	return a.enabled[name]
}

// ResolveActivation computes the activation decision for every spec in the
// registry. A present configuration key wins; an absent key falls back to the
// spec's default. Resolution never fails on its own.
func ResolveActivation(reg *Registry, config ConfigProvider, keyFn KeyFunc) Activation {
	if keyFn == nil {
		keyFn = DefaultEnabledKey
	}

	decision := Activation{enabled: make(map[string]bool, reg.Len())}
	for _, spec := range reg.Specs() {
		key := spec.EnabledConfigKey
		if key == "" {
			key = keyFn(spec.Name)
		}
		if v, ok := config.Bool(key); ok {
			decision.enabled[spec.Name] = v
			continue
		}
		decision.enabled[spec.Name] = spec.enabledDefault()
	}
	return decision
}
