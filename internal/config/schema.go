package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Shape describes the expected structure of a recognized key.
type Shape int

const (
	ShapeString Shape = iota
	ShapeBool
	ShapeInt
	ShapeDate
	ShapeStringList
	// ShapeStringMap marks a key whose children are an ordered mapping of strings (e.g. programs).
	ShapeStringMap
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeBool:
		return "bool"
	case ShapeInt:
		return "int"
	case ShapeDate:
		return "date"
	case ShapeStringList:
		return "list of strings"
	case ShapeStringMap:
		return "mapping of strings"
	default:
		return "unknown"
	}
}

// Schema maps recognized keys to their shapes. Unrecognized keys pass through
// untouched so pages can carry arbitrary metadata.
type Schema map[string]Shape

// DefaultSchema lists every key the builder, its programs and bundled modules read.
func DefaultSchema() Schema {
	return Schema{
		"title":                         ShapeString,
		"summary":                       ShapeString,
		"description":                   ShapeString,
		"image":                         ShapeString,
		"image_alt":                     ShapeString,
		"template":                      ShapeString,
		"template_path":                 ShapeString,
		"program":                       ShapeString,
		"journal":                       ShapeString,
		"destination_filename":          ShapeString,
		"canonical_url":                 ShapeString,
		"output_folder":                 ShapeString,
		"static_folder":                 ShapeString,
		"author":                        ShapeString,
		"locale":                        ShapeString,
		"public":                        ShapeBool,
		"jinja":                         ShapeBool,
		"template_autoescape":           ShapeBool,
		"respect_gitignore":             ShapeBool,
		"day-order":                     ShapeInt,
		"pub_date":                      ShapeDate,
		"ignore_files":                  ShapeStringList,
		"tags":                          ShapeStringList,
		"active_modules":                ShapeStringList,
		"text_extensions":               ShapeStringList,
		"programs":                      ShapeStringMap,
		"scss.command":                  ShapeStringList,
		"feed.name":                     ShapeString,
		"feed.limit":                    ShapeInt,
		"modules.blog.archive_url":      ShapeString,
		"modules.blog.archive_year_url": ShapeString,
		"modules.blog.feed_url":         ShapeString,
		"modules.blog.pub_date_match":   ShapeString,
		"modules.tags.tag_url":          ShapeString,
		"modules.tags.tagfeed_url":      ShapeString,
		"modules.tags.tags_url":         ShapeString,
		"modules.notify.url":            ShapeString,
		"modules.notify.subject":        ShapeString,
		"modules.gitinfo.enabled":       ShapeBool,
	}
}

// Validate checks layer against the schema and returns a normalized copy in
// which every recognized key holds its canonical Go type:
//
//	string -> string, bool -> bool, int -> int, date -> time.Time,
//	list of strings -> []string, mapping of strings -> string leaves.
//
// A scalar given where a list is expected is promoted to a one-element list.
func (s Schema) Validate(origin string, layer *Layer) (*Layer, error) {
	out := NewLayer()
	for _, key := range layer.Keys() {
		raw, _ := layer.Get(key)
		if err := s.checkPrefixes(key); err != nil {
			return nil, errors.ConfigError(err.Error()).WithSource(origin).WithContext("key", key).Build()
		}
		shape, known := s.shapeOf(key)
		if !known {
			out.Set(key, raw)
			continue
		}
		v, err := coerce(shape, raw)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("key %q: %v", key, err)).
				WithSource(origin).WithContext("key", key).Build()
		}
		out.Set(key, v)
	}
	return out, nil
}

// shapeOf returns the shape for key, treating children of a mapping-shaped key as strings.
func (s Schema) shapeOf(key string) (Shape, bool) {
	if shape, ok := s[key]; ok {
		return shape, true
	}
	for k, shape := range s {
		if shape == ShapeStringMap && strings.HasPrefix(key, k+".") {
			return ShapeString, true
		}
	}
	return 0, false
}

// checkPrefixes rejects a leaf stored where the schema expects a nested mapping,
// e.g. `feed: 10` when `feed.limit` is a recognized key.
func (s Schema) checkPrefixes(key string) error {
	if shape, ok := s[key]; ok && shape == ShapeStringMap {
		return fmt.Errorf("key %q must be a mapping", key)
	}
	prefix := key + "."
	for k := range s {
		if strings.HasPrefix(k, prefix) {
			return fmt.Errorf("key %q must be a mapping (expected %q beneath it)", key, k)
		}
	}
	return nil
}

func coerce(shape Shape, raw any) (any, error) {
	switch shape {
	case ShapeString:
		return coerceString(raw)
	case ShapeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %T", shape, raw)
		}
		return b, nil
	case ShapeInt:
		return coerceInt(raw)
	case ShapeDate:
		return coerceDate(raw)
	case ShapeStringList:
		return coerceStringList(raw)
	default:
		return raw, nil
	}
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected %s, got %T", ShapeString, raw)
	}
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("expected %s, got %q", ShapeInt, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected %s, got %T", ShapeInt, raw)
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate accepts the date forms found in front-matter and YAML config.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func coerceDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return ParseDate(v)
	default:
		return time.Time{}, fmt.Errorf("expected %s, got %T", ShapeDate, raw)
	}
}

func coerceStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, err := coerceString(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("expected %s, got %T", ShapeStringList, raw)
	}
}
