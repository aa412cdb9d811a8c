package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and strictly decodes a manifest file. Unknown fields are
// rejected at the top level, in global, in each module, in a module's
// location mapping and in {index, component_name} entries, and yaml.v3
// annotates the resulting error with the offending line, which Load folds
// into a path-annotated message. The add_conf mapping and a location's
// patch and replace entries are decoded without that check, so unknown
// keys inside them are ignored.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path %s: %w", path, err)
	}
	m.Path = abs

	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return &m, nil
}

// Dir returns the directory the manifest was loaded from, the default
// anchor for relative Location and PatchSpec paths.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// PatchRoot is the effective root PatchSpec.Relative paths resolve against:
// the manifest directory, or manifest_dir/global.local_patches when set.
func (m *Manifest) PatchRoot() string {
	if m.Global.LocalPatches == "" {
		return m.Dir()
	}
	return filepath.Join(m.Dir(), m.Global.LocalPatches)
}

func validate(m *Manifest) error {
	for i, mod := range m.Modules {
		if mod.Name == "" {
			return fmt.Errorf("modules[%d]: name is required", i)
		}
		if !mod.Components.Ask {
			for j, e := range mod.Components.Entries {
				if e.Index < 0 {
					return fmt.Errorf("modules[%d] (%s): components[%d]: negative index %d", i, mod.Name, j, e.Index)
				}
			}
		}
		if mod.Location != nil {
			if g, ok := mod.Location.(GitHubLocation); ok {
				if _, _, err := g.Coordinate(); err != nil {
					return fmt.Errorf("modules[%d] (%s): location: %w", i, mod.Name, err)
				}
			}
		}
	}
	return nil
}
