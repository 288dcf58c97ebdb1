// Package globs matches fnmatch-style patterns with compiled-pattern caching.
package globs

import (
	"sync"

	"github.com/gobwas/glob"
)

var cache sync.Map // pattern -> glob.Glob

// Compile returns the compiled form of pattern. Patterns are compiled without
// separators so `*` also matches `/`, like fnmatch.
func Compile(pattern string) (glob.Glob, error) {
	if g, ok := cache.Load(pattern); ok {
		return g.(glob.Glob), nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	cache.Store(pattern, g)
	return g, nil
}

// Match reports whether name matches pattern.
func Match(pattern, name string) (bool, error) {
	g, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(name), nil
}
