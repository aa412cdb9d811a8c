package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ComponentSelector is the module's components field: either the literal
// string "ask" or an ordered list of ComponentEntry. It is a tagged sum
// type rather than two separate optional fields, so decoding a manifest can
// never produce both at once.
type ComponentSelector struct {
	Ask     bool
	Entries []ComponentEntry
}

// ComponentEntry is one selected component: a bare index, or an index with
// a preserved-for-round-trip human label that install time ignores.
type ComponentEntry struct {
	Index         int
	ComponentName string
}

// UnmarshalYAML implements the tagged-variant decode: a scalar "ask", or a
// sequence whose elements are either bare integers or {index, component_name}.
func (c *ComponentSelector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("components: %w", err)
		}
		if s != "ask" {
			return fmt.Errorf("components: %q is not a valid scalar value (only \"ask\" is)", s)
		}
		c.Ask = true
		c.Entries = nil
		return nil
	}

	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("components: expected \"ask\" or a sequence, got %v", node.Kind)
	}

	entries := make([]ComponentEntry, 0, len(node.Content))
	for i, item := range node.Content {
		entry, err := decodeComponentEntry(item)
		if err != nil {
			return fmt.Errorf("components[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	c.Ask = false
	c.Entries = entries
	return nil
}

func decodeComponentEntry(node *yaml.Node) (ComponentEntry, error) {
	if node.Kind == yaml.ScalarNode {
		var idx int
		if err := node.Decode(&idx); err != nil {
			return ComponentEntry{}, fmt.Errorf("expected an integer index: %w", err)
		}
		return ComponentEntry{Index: idx}, nil
	}

	if node.Kind == yaml.MappingNode {
		if err := checkKnownFields(node, "index", "component_name"); err != nil {
			return ComponentEntry{}, err
		}
		type raw struct {
			Index         int    `yaml:"index"`
			ComponentName string `yaml:"component_name,omitempty"`
		}
		var r raw
		if err := node.Decode(&r); err != nil {
			return ComponentEntry{}, err
		}
		return ComponentEntry{Index: r.Index, ComponentName: r.ComponentName}, nil
	}

	return ComponentEntry{}, fmt.Errorf("expected an integer or a mapping, got %v", node.Kind)
}

// MarshalYAML implements the reverse of UnmarshalYAML, used by the reverse
// generator to write manifests back out.
func (c ComponentSelector) MarshalYAML() (interface{}, error) {
	if c.Ask {
		return "ask", nil
	}
	out := make([]interface{}, 0, len(c.Entries))
	for _, e := range c.Entries {
		if e.ComponentName == "" {
			out = append(out, e.Index)
			continue
		}
		out = append(out, map[string]interface{}{
			"index":          e.Index,
			"component_name": e.ComponentName,
		})
	}
	return out, nil
}
