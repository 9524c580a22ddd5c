// Package capability implements the bootstrap engine for container
// capabilities: activation resolution, dependency-ordered planning, and
// lifecycle orchestration with rollback.
//
// A capability is a named service facet of the container process (process
// management, exchange management, datastore access, ...). The engine consumes
// an already-parsed manifest of capability specs, decides which capabilities
// are enabled, computes a deterministic start order over the enabled subset,
// instantiates each capability through an injected factory, and binds the live
// instances into a shared RuntimeContext.
package capability

import (
	"strconv"
	"strings"
)

// Spec describes one declared capability. Specs are immutable once loaded
// into a Registry.
type Spec struct {
	// Name uniquely identifies the capability within a manifest.
	Name string

	// Doc is the human-readable description from the manifest.
	Doc string

	// ClassRef is an opaque reference to the implementing type. It is
	// resolved through a Factory, never by dynamic lookup.
	ClassRef string

	// Field is the optional name under which the instance is bound in the
	// RuntimeContext. Capabilities without a field are only bound under
	// their capability name.
	Field string

	// DependsOn lists capabilities that must be started first. Every entry
	// must name a spec in the same manifest.
	DependsOn []string

	// EnabledConfigKey overrides the configuration key consulted during
	// activation. When empty the key derived by the configured KeyFunc
	// (default "container.<name>.enabled") is used.
	EnabledConfigKey string

	// EnabledDefault is the activation fallback when the configuration key
	// is absent. Nil means enabled.
	EnabledDefault *bool
}

// enabledDefault reports the activation fallback for the spec.
func (s Spec) enabledDefault() bool {
	return s.EnabledDefault == nil || *s.EnabledDefault
}

// Registry is the validated, immutable collection of capability specs for one
// container run. Iteration follows manifest declaration order.
type Registry struct {
	specs []Spec
	index map[string]int
}

// NewRegistry validates the manifest specs and returns a Registry. Duplicate
// names, dangling dependency references, and malformed configuration keys are
// rejected with a ManifestError before any resolution takes place.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	copy(r.specs, specs)

	for i, spec := range r.specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, &ManifestError{Capability: spec.Name, Detail: "capability name is empty"}
		}
		if _, exists := r.index[spec.Name]; exists {
			return nil, &ManifestError{Capability: spec.Name, Detail: "duplicate capability name"}
		}
		if key := spec.EnabledConfigKey; key != "" {
			if key != strings.TrimSpace(key) || strings.ContainsAny(key, " \t") {
				return nil, &ManifestError{Capability: spec.Name, Detail: "malformed enabled_config_key " + strconv.Quote(key)}
			}
		}
		r.index[spec.Name] = i
	}

	for _, spec := range r.specs {
		for _, dep := range spec.DependsOn {
			if _, ok := r.index[dep]; !ok {
				return nil, &ManifestError{Capability: spec.Name, Detail: "depends on unknown capability " + strconv.Quote(dep)}
			}
		}
	}

	return r, nil
}

// Len returns the number of declared capabilities.
func (r *Registry) Len() int { return len(r.specs) }

// Specs returns the specs in manifest declaration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Spec returns the spec for the named capability.
func (r *Registry) Spec(name string) (Spec, bool) {
	i, ok := r.index[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// indexOf returns the dense declaration index for the named capability.
func (r *Registry) indexOf(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}
