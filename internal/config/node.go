// Package config implements the hierarchical configuration tree.
//
// A Node holds one level's declarations (the project root, a directory with its own
// config.yml, or the per-file overlay built from front-matter and sidecar metadata)
// plus a link to its parent. Lookups come in four flavors:
//
//   - LocalGet reads only the node's own declarations.
//   - Get returns the value from the nearest node that declares the key.
//   - MergedGet concatenates list values from the root down to this node.
//   - RootGet reads only the top-most node.
//
// Nodes are immutable after construction; overlays create new nodes.
package config

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// FileName is the per-directory configuration file name.
const FileName = "config.yml"

// Node is one level in the configuration tree.
type Node struct {
	parent    *Node
	origin    string
	layer     *Layer
	schema    Schema
	transient bool
}

// Entry is one key/value pair of an ordered mapping returned by ListEntries.
type Entry struct {
	Key   string
	Value string
}

// NewRoot validates layer against schema and returns a root node.
// A nil schema selects DefaultSchema.
func NewRoot(origin string, layer *Layer, schema Schema) (*Node, error) {
	if schema == nil {
		schema = DefaultSchema()
	}
	if layer == nil {
		layer = NewLayer()
	}
	validated, err := schema.Validate(origin, layer)
	if err != nil {
		return nil, err
	}
	return &Node{origin: origin, layer: validated, schema: schema}, nil
}

// Child returns a new node below n carrying layer's declarations.
func (n *Node) Child(origin string, layer *Layer) (*Node, error) {
	if layer == nil {
		layer = NewLayer()
	}
	validated, err := n.schema.Validate(origin, layer)
	if err != nil {
		return nil, err
	}
	return &Node{parent: n, origin: origin, layer: validated, schema: n.schema}, nil
}

// Overlay returns a transient child scoped to a single file. It is never
// reachable from any other node, so sibling files never observe it.
func (n *Node) Overlay(origin string, layer *Layer) (*Node, error) {
	child, err := n.Child(origin, layer)
	if err != nil {
		return nil, err
	}
	child.transient = true
	return child, nil
}

// AddFromFile reads a YAML mapping from path and returns a child node.
func (n *Node) AddFromFile(path string) (*Node, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot read configuration").
			WithSource(path).Fatal().Build()
	}
	layer, err := ParseLayer(path, data)
	if err != nil {
		return nil, err
	}
	return n.Child(path, layer)
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Origin names where this node's declarations came from.
func (n *Node) Origin() string { return n.origin }

// Transient reports whether n is a per-file overlay.
func (n *Node) Transient() bool { return n.transient }

// Schema returns the schema the tree validates against.
func (n *Node) Schema() Schema { return n.schema }

// Root returns the top-most ancestor.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// chain returns the nodes from the root down to n.
func (n *Node) chain() []*Node {
	var rev []*Node
	for cur := n; cur != nil; cur = cur.parent {
		rev = append(rev, cur)
	}
	out := make([]*Node, len(rev))
	for i, node := range rev {
		out[len(rev)-1-i] = node
	}
	return out
}

// LocalGet reads key from this node only.
func (n *Node) LocalGet(key string) (any, bool) {
	return n.layer.Get(key)
}

// LocalKeys lists the keys declared on this node in declaration order.
func (n *Node) LocalKeys() []string {
	return n.layer.Keys()
}

// Get reads key from the nearest node that declares it.
func (n *Node) Get(key string) (any, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if v, ok := cur.layer.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// RootGet reads key from the root node only.
func (n *Node) RootGet(key string) (any, bool) {
	return n.Root().layer.Get(key)
}

// MergedGet concatenates the list values of key from the root down to n.
// The boolean reports whether any level declared the key at all.
func (n *Node) MergedGet(key string) ([]string, bool) {
	var (
		out      []string
		declared bool
	)
	for _, node := range n.chain() {
		v, ok := node.layer.Get(key)
		if !ok {
			continue
		}
		declared = true
		out = append(out, asStrings(v)...)
	}
	return out, declared
}

// ListEntries returns the ordered mapping stored below prefix, merged across the chain.
// Entries keep the position of their first declaration; nearer nodes override values.
func (n *Node) ListEntries(prefix string) []Entry {
	p := prefix + "."
	var entries []Entry
	index := map[string]int{}
	for _, node := range n.chain() {
		for _, key := range node.layer.Keys() {
			if len(key) <= len(p) || key[:len(p)] != p {
				continue
			}
			sub := key[len(p):]
			v, _ := node.layer.Get(key)
			s, _ := coerceString(v)
			if i, ok := index[sub]; ok {
				entries[i].Value = s
				continue
			}
			index[sub] = len(entries)
			entries = append(entries, Entry{Key: sub, Value: s})
		}
	}
	return entries
}

// GetString returns the nearest string value for key, or def.
func (n *Node) GetString(key, def string) string {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	s, err := coerceString(v)
	if err != nil {
		return def
	}
	return s
}

// RootGetString returns the root's string value for key, or def.
func (n *Node) RootGetString(key, def string) string {
	v, ok := n.RootGet(key)
	if !ok {
		return def
	}
	s, err := coerceString(v)
	if err != nil {
		return def
	}
	return s
}

// GetBool returns the nearest bool value for key, or def.
func (n *Node) GetBool(key string, def bool) bool {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// GetInt returns the nearest int value for key, or def.
func (n *Node) GetInt(key string, def int) int {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	i, err := coerceInt(v)
	if err != nil {
		return def
	}
	return i
}

// GetTime returns the nearest date value for key.
func (n *Node) GetTime(key string) (time.Time, bool) {
	v, ok := n.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := coerceDate(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// GetStrings returns the nearest list value for key (no merging), or def.
func (n *Node) GetStrings(key string, def []string) []string {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	return asStrings(v)
}

func asStrings(v any) []string {
	out, err := coerceStringList(v)
	if err != nil {
		return nil
	}
	return out
}
