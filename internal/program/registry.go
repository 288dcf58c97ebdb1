package program

import (
	"fmt"
	"sort"
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Definition describes one program the builder can dispatch to.
type Definition struct {
	Name string
	Kind Kind
	// FrontMatter reports whether sources for this program carry a header
	// block and may have a sidecar metadata file. Built-ins derive it from
	// their Kind; extensions set it themselves.
	FrontMatter bool
	New         Factory
}

// Registry resolves program names to definitions. Built-ins are always present;
// host extensions are added with Register before the build starts.
type Registry struct {
	mu         sync.RWMutex
	defs       map[string]Definition
	directives map[string]DirectiveFunc
}

// NewRegistry returns a registry holding the built-in programs.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, def := range builtins() {
		def.FrontMatter = def.Kind.FrontMatter()
		r.defs[def.Name] = def
	}
	return r
}

func builtins() []Definition {
	return []Definition{
		{Name: NameCopy, Kind: KindCopy, New: newCopy},
		{Name: NameHTML, Kind: KindHTML, New: newHTML},
		{Name: NameMarkdown, Kind: KindMarkdown, New: newMarkdown},
		{Name: NameSCSS, Kind: KindSCSS, New: newSCSS},
	}
}

// Register adds a host-provided program. Names must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.New == nil {
		return errors.ValidationError("program definition needs a name and a factory").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return errors.ValidationError(fmt.Sprintf("program %q already registered", def.Name)).Build()
	}
	def.Kind = KindExtension
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, errors.ConfigError(fmt.Sprintf("unknown program %q", name)).
			WithContext("program", name).Build()
	}
	return def, nil
}

// Names lists registered program names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every program named by node's own declarations exists
// and that every glob in its programs mapping compiles.
func (r *Registry) Validate(node *config.Node) error {
	for _, e := range node.ListEntries("programs") {
		if _, err := r.Lookup(e.Value); err != nil {
			return errors.ConfigError(fmt.Sprintf("programs mapping %q names unknown program %q", e.Key, e.Value)).
				WithSource(node.Origin()).WithCause(err).Build()
		}
		if err := checkPattern(e.Key); err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid program pattern %q", e.Key)).
				WithSource(node.Origin()).WithCause(err).Build()
		}
	}
	if v, ok := node.LocalGet("program"); ok {
		name, _ := v.(string)
		if _, err := r.Lookup(name); err != nil {
			return errors.ConfigError(fmt.Sprintf("unknown program %q", name)).
				WithSource(node.Origin()).WithCause(err).Build()
		}
	}
	return nil
}
