package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Layer is one level's worth of declarations: flattened dotted keys in declaration order.
// Layers are immutable once attached to a Node.
type Layer struct {
	keys   []string
	values map[string]any
}

// NewLayer returns an empty layer.
func NewLayer() *Layer {
	return &Layer{values: make(map[string]any)}
}

// Set stores value under key. A key that already exists keeps its original position.
func (l *Layer) Set(key string, value any) {
	if _, exists := l.values[key]; !exists {
		l.keys = append(l.keys, key)
	}
	l.values[key] = value
}

// Get reads a single flattened key from this layer only.
func (l *Layer) Get(key string) (any, bool) {
	if l == nil {
		return nil, false
	}
	v, ok := l.values[key]
	return v, ok
}

// Keys returns the layer's keys in declaration order.
func (l *Layer) Keys() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.keys...)
}

// Len returns the number of flattened keys.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.keys)
}

// Merge returns a new layer holding l's entries overridden by other's.
func (l *Layer) Merge(other *Layer) *Layer {
	out := NewLayer()
	for _, k := range l.Keys() {
		out.Set(k, l.values[k])
	}
	for _, k := range other.Keys() {
		out.Set(k, other.values[k])
	}
	return out
}

// ParseLayer decodes a YAML document into a layer. The document must be a mapping (or empty).
// origin names the file the data came from and is attached to any error.
func ParseLayer(origin string, data []byte) (*Layer, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "malformed YAML").
			WithSource(origin).Fatal().Build()
	}
	layer := NewLayer()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return layer, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return layer, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.ConfigError(fmt.Sprintf("expected a mapping, got %s", describeNode(root))).
			WithSource(origin).Build()
	}
	if err := flattenNode(layer, "", root); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot decode configuration").
			WithSource(origin).Fatal().Build()
	}
	return layer, nil
}

// LayerFromMap flattens an already decoded mapping. Keys are visited in sorted order
// because Go maps carry no declaration order.
func LayerFromMap(m map[string]any) *Layer {
	layer := NewLayer()
	flattenMap(layer, "", m)
	return layer
}

func flattenNode(layer *Layer, prefix string, n *yaml.Node) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		key := keyNode.Value
		if prefix != "" {
			key = prefix + "." + key
		}
		if valNode.Kind == yaml.AliasNode && valNode.Alias != nil {
			valNode = valNode.Alias
		}
		if valNode.Kind == yaml.MappingNode {
			if err := flattenNode(layer, key, valNode); err != nil {
				return err
			}
			continue
		}
		var v any
		if err := valNode.Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		layer.Set(key, v)
	}
	return nil
}

func flattenMap(layer *Layer, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := m[k].(map[string]any); ok {
			flattenMap(layer, key, nested)
			continue
		}
		layer.Set(key, m[k])
	}
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return fmt.Sprintf("scalar %.40q", n.Value)
	default:
		return "a non-mapping document"
	}
}
