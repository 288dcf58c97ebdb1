package routing

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Converter names accepted inside placeholders: `<name>`, `<int:name>`, `<path:name>`.
const (
	ConvDefault = "default"
	ConvInt     = "int"
	ConvPath    = "path"
)

type segment struct {
	literal string
	param   string
	conv    string
}

// Rule is one compiled URL pattern.
type Rule struct {
	Name     string
	Pattern  string
	Defaults map[string]any

	segments []segment
	params   []string
	re       *regexp.Regexp
}

var placeholderRe = regexp.MustCompile(`<(?:([a-z]+):)?([A-Za-z_][A-Za-z0-9_]*)>`)

// Compile parses pattern into a Rule. Patterns must start with "/".
func Compile(name, pattern string) (*Rule, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}
	r := &Rule{Name: name, Pattern: pattern}

	var expr strings.Builder
	expr.WriteString("^")
	last := 0
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		if m[0] > last {
			lit := pattern[last:m[0]]
			r.segments = append(r.segments, segment{literal: lit})
			expr.WriteString(regexp.QuoteMeta(lit))
		}
		conv := ConvDefault
		if m[2] >= 0 {
			conv = pattern[m[2]:m[3]]
		}
		param := pattern[m[4]:m[5]]
		if seen[param] {
			return nil, fmt.Errorf("pattern %q repeats placeholder %q", pattern, param)
		}
		seen[param] = true

		var group string
		switch conv {
		case ConvDefault:
			group = `[^/]+`
		case ConvInt:
			group = `\d+`
		case ConvPath:
			group = `[^/].*?`
		default:
			return nil, fmt.Errorf("pattern %q uses unknown converter %q", pattern, conv)
		}
		fmt.Fprintf(&expr, "(?P<%s>%s)", param, group)
		r.segments = append(r.segments, segment{param: param, conv: conv})
		r.params = append(r.params, param)
		last = m[1]
	}
	if last < len(pattern) {
		lit := pattern[last:]
		r.segments = append(r.segments, segment{literal: lit})
		expr.WriteString(regexp.QuoteMeta(lit))
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	r.re = re
	return r, nil
}

// Params lists the placeholders in pattern order.
func (r *Rule) Params() []string {
	return append([]string(nil), r.params...)
}

// satisfied reports whether values covers every placeholder.
func (r *Rule) satisfied(values map[string]any) bool {
	for _, p := range r.params {
		if _, ok := values[p]; !ok {
			return false
		}
	}
	return true
}

// build fills the placeholders. Callers check satisfied first.
func (r *Rule) build(values map[string]any) (string, error) {
	var b strings.Builder
	for _, s := range r.segments {
		if s.param == "" {
			b.WriteString(s.literal)
			continue
		}
		v, err := encode(s.conv, values[s.param])
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", s.param, err)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Match parses path against the rule; ok is false when it does not match.
func (r *Rule) Match(path string) (map[string]any, bool) {
	m := r.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	out := make(map[string]any, len(r.params)+len(r.Defaults))
	for k, v := range r.Defaults {
		out[k] = v
	}
	for i, name := range r.re.SubexpNames() {
		if name == "" {
			continue
		}
		conv := r.convOf(name)
		raw, err := url.PathUnescape(m[i])
		if err != nil {
			raw = m[i]
		}
		if conv == ConvInt {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, false
			}
			out[name] = n
			continue
		}
		out[name] = raw
	}
	return out, true
}

func (r *Rule) convOf(param string) string {
	for _, s := range r.segments {
		if s.param == param {
			return s.conv
		}
	}
	return ConvDefault
}

func encode(conv string, v any) (string, error) {
	switch conv {
	case ConvInt:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case string:
			if _, err := strconv.Atoi(n); err != nil {
				return "", fmt.Errorf("expected an integer, got %q", n)
			}
			return n, nil
		default:
			return "", fmt.Errorf("expected an integer, got %T", v)
		}
	case ConvPath:
		s := strings.Trim(fmt.Sprint(v), "/")
		parts := strings.Split(s, "/")
		for i, p := range parts {
			parts[i] = url.PathEscape(p)
		}
		return strings.Join(parts, "/"), nil
	default:
		s := fmt.Sprint(v)
		if s == "" {
			return "", fmt.Errorf("empty value")
		}
		return url.PathEscape(s), nil
	}
}
