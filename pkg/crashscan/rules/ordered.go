package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MapEntry is one key/value pair of an OrderedMap.
type MapEntry[V any] struct {
	Key   string
	Value V
}

// OrderedMap is a YAML mapping decoded in declaration order.
// Later duplicates of a key replace the value but keep the first position.
type OrderedMap[V any] []MapEntry[V]

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	out := make(OrderedMap[V], 0, len(node.Content)/2)
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var v V
		if err := valNode.Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		if j, ok := seen[keyNode.Value]; ok {
			out[j].Value = v
			continue
		}
		seen[keyNode.Value] = len(out)
		out = append(out, MapEntry[V]{Key: keyNode.Value, Value: v})
	}
	*m = out
	return nil
}

// Get returns the value stored under key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero V
	return zero, false
}

// Keys returns the keys in declaration order.
func (m OrderedMap[V]) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// StringList decodes either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// ImportantValue is the value of an important-mod entry: either plain advice
// text or a mapping with advice and a required GPU vendor.
type ImportantValue struct {
	Advice string `yaml:"advice"`
	GPU    string `yaml:"gpu"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *ImportantValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v.Advice = node.Value
		return nil
	}
	type plain ImportantValue
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = ImportantValue(p)
	return nil
}
