package catalog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// Manifest declares handler metadata in YAML:
//
//	handlers:
//	  - id: example_hooks_1
//	    hooks:
//	      event_theme: 0
//	      event_form_alter: 10
type Manifest struct {
	Handlers []ManifestEntry `yaml:"handlers"`
}

// ManifestEntry is one handler's declared hooks
type ManifestEntry struct {
	ID    string         `yaml:"id"`
	Hooks map[string]any `yaml:"hooks"`
}

// LoadManifest reads and parses a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML and validates every entry
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for i, def := range m.Definitions() {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
	}

	return &m, nil
}

// Definitions converts the entries to handler definitions, in file order
func (m *Manifest) Definitions() []hook.Definition {
	defs := make([]hook.Definition, 0, len(m.Handlers))
	for _, e := range m.Handlers {
		defs = append(defs, hook.NewDefinition(e.ID, e.Hooks))
	}
	return defs
}

// Apply registers every manifest entry that has a constructor. Because the
// registry keeps the last registration, manifest entries override
// definitions registered earlier from code. An overridden handler also
// moves to the end of registration order, so it ties after every
// equal-priority handler. Entries without a constructor are skipped. Returns the number of entries registered.
func (m *Manifest) Apply(reg *Registry, ctors map[string]Constructor) (int, error) {
	applied := 0
	for _, def := range m.Definitions() {
		ctor, ok := ctors[def.ID]
		if !ok {
			reg.logger.Warn("Manifest handler has no constructor, skipping",
				zap.String("handler_id", def.ID))
			continue
		}
		if err := reg.Register(def, ctor); err != nil {
			return applied, fmt.Errorf("failed to register manifest handler %s: %w", def.ID, err)
		}
		applied++
	}
	return applied, nil
}
