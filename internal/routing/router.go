// Package routing maps symbolic endpoint names and parameters to URL paths
// and to files below the output folder.
package routing

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// IndexFile is appended to directory-style URLs when mapping them to files.
const IndexFile = "index.html"

// Lookup reads a string from the root configuration.
type Lookup func(key string) (string, bool)

// Router holds the registered rules of one builder.
type Router struct {
	prefix    string
	outputDir string
	lookup    Lookup
	rules     []*Rule
}

// Option configures a single registration.
type Option func(*registration)

type registration struct {
	defaults  map[string]any
	configKey string
}

// WithDefaults supplies values used when Build is not given them.
func WithDefaults(defaults map[string]any) Option {
	return func(r *registration) { r.defaults = defaults }
}

// WithConfigKey lets the root configuration relocate the route: when key is
// set its value replaces the pattern.
func WithConfigKey(key string) Option {
	return func(r *registration) { r.configKey = key }
}

// New returns a router whose URLs are rooted at prefix (the path component of
// the canonical URL) and whose files live below outputDir.
func New(prefix, outputDir string, lookup Lookup) *Router {
	prefix = strings.TrimRight(prefix, "/")
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Router{prefix: prefix, outputDir: outputDir, lookup: lookup}
}

// PrefixFromURL extracts the path component of a canonical URL.
func PrefixFromURL(canonical string) string {
	if canonical == "" {
		return ""
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

// Prefix returns the script root every built URL starts with.
func (r *Router) Prefix() string { return r.prefix }

// OutputDir returns the folder LinkFilename resolves into.
func (r *Router) OutputDir() string { return r.outputDir }

// Register adds a named rule. Several rules may share a name; Build picks the
// first one whose placeholders are all supplied.
func (r *Router) Register(name, pattern string, opts ...Option) error {
	reg := registration{}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.configKey != "" {
		if v, ok := r.lookup(reg.configKey); ok && v != "" {
			pattern = v
		}
	}
	rule, err := Compile(name, pattern)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRouting, "invalid route").
			WithContext("route", name).Fatal().Build()
	}
	rule.Defaults = reg.defaults
	r.rules = append(r.rules, rule)
	return nil
}

// Rules returns the registered rules in registration order.
func (r *Router) Rules() []*Rule {
	return append([]*Rule(nil), r.rules...)
}

// Build produces the absolute URL path for name. It fails with a routing
// error when no rule of that name can be satisfied by params.
func (r *Router) Build(name string, params map[string]any) (string, error) {
	values := map[string]any{}
	found := false
	for _, rule := range r.rules {
		if rule.Name != name {
			continue
		}
		found = true
		for k := range values {
			delete(values, k)
		}
		for k, v := range rule.Defaults {
			values[k] = v
		}
		for k, v := range params {
			values[k] = v
		}
		if !rule.satisfied(values) {
			continue
		}
		p, err := rule.build(values)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryRouting, "cannot build URL").
				WithContext("route", name).Fatal().Build()
		}
		return r.prefix + p, nil
	}
	if !found {
		return "", errors.RoutingError(fmt.Sprintf("no route named %q", name)).
			WithContext("route", name).Build()
	}
	return "", errors.RoutingError(fmt.Sprintf("missing parameters for route %q", name)).
		WithContext("route", name).WithContext("params", params).Build()
}

// Match finds the first rule that matches urlPath (with the prefix stripped).
func (r *Router) Match(urlPath string) (string, map[string]any, bool) {
	p := strings.TrimPrefix(urlPath, r.prefix)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, rule := range r.rules {
		if values, ok := rule.Match(p); ok {
			return rule.Name, values, true
		}
	}
	return "", nil, false
}

// Resolve matches p against a one-off pattern. A non-matching path (or a malformed
// pattern) reports ok == false rather than an error.
func Resolve(pattern, p string) (map[string]any, bool) {
	rule, err := Compile("", pattern)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return rule.Match(p)
}

// LinkFilename maps a built route to a file below the output folder. Directory
// style URLs (empty or ending in "/") get index.html appended.
func (r *Router) LinkFilename(name string, params map[string]any) (string, error) {
	link, err := r.Build(name, params)
	if err != nil {
		return "", err
	}
	link = strings.TrimLeft(link, "/")
	if unq, uerr := url.PathUnescape(link); uerr == nil {
		link = unq
	}
	if link == "" || strings.HasSuffix(link, "/") {
		link += IndexFile
	}
	return filepath.Join(r.outputDir, filepath.FromSlash(path.Clean("/" + link)[1:])), nil
}

// OpenLinkFile creates the file for a route, making its directory first.
func (r *Router) OpenLinkFile(name string, params map[string]any) (io.WriteCloser, error) {
	filename, err := r.LinkFilename(name, params)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot create output directory").
			WithSource(filename).Fatal().Build()
	}
	f, err := os.Create(filepath.Clean(filename))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot create output file").
			WithSource(filename).Fatal().Build()
	}
	return f, nil
}
