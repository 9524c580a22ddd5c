package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ion-foundation/capability-container/internal/capability"
)

// manifestFile mirrors the on-disk manifest layout.
type manifestFile struct {
	Capabilities []manifestSpec `yaml:"capabilities"`
}

type manifestSpec struct {
	Name             string   `yaml:"name"`
	Doc              string   `yaml:"doc"`
	Class            string   `yaml:"class"`
	Field            string   `yaml:"field"`
	DependsOn        []string `yaml:"depends_on"`
	EnabledConfigKey string   `yaml:"enabled_config_key"`
	EnabledDefault   *bool    `yaml:"enabled_default"`
}

// LoadManifest reads a capability manifest file and returns the validated
// registry.
func LoadManifest(path string) (*capability.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML into a validated capability registry.
// Declaration order is preserved; it drives topological tie-breaking.
func ParseManifest(data []byte) (*capability.Registry, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	specs := make([]capability.Spec, 0, len(mf.Capabilities))
	for _, m := range mf.Capabilities {
		specs = append(specs, capability.Spec{
			Name:             m.Name,
			Doc:              m.Doc,
			ClassRef:         m.Class,
			Field:            m.Field,
			DependsOn:        m.DependsOn,
			EnabledConfigKey: m.EnabledConfigKey,
			EnabledDefault:   m.EnabledDefault,
		})
	}

	return capability.NewRegistry(specs)
}
