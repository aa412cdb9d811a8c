package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// checkKnownFields rejects a mapping node carrying a key outside allowed.
// yaml.Node.Decode builds its own internal decoder and does not inherit the
// KnownFields(true) set on the outer yaml.Decoder in Load, so every custom
// UnmarshalYAML that calls node.Decode on a mapping has to re-enforce the
// same strictness itself.
func checkKnownFields(node *yaml.Node, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !set[key.Value] {
			return fmt.Errorf("line %d: field %s not found in type", key.Line, key.Value)
		}
	}
	return nil
}
