package program

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Directive is one `.. name:: argument` block found in a markdown body.
type Directive struct {
	Name     string
	Argument string
	// Options holds the leading `:key: value` lines of the block.
	Options map[string]string
	// Content is the indented block body with the indent removed.
	Content string
	// Source is the slash separated path of the page holding the block.
	Source string
}

// DirectiveFunc renders a directive into an HTML fragment that replaces it.
type DirectiveFunc func(ctx context.Context, d Directive) (template.HTML, error)

var (
	directiveLine = regexp.MustCompile(`^\.\.\s+([A-Za-z0-9_-]+)::\s*(.*)$`)
	optionLine    = regexp.MustCompile(`^:([A-Za-z0-9_-]+):\s*(.*)$`)
)

const directiveIndent = "    "

// RegisterDirective makes fn available to markdown pages under name.
func (r *Registry) RegisterDirective(name string, fn DirectiveFunc) error {
	if name == "" || fn == nil {
		return errors.ValidationError("directive needs a name and a handler").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.directives == nil {
		r.directives = make(map[string]DirectiveFunc)
	}
	if _, exists := r.directives[name]; exists {
		return errors.ValidationError(fmt.Sprintf("directive %q already registered", name)).Build()
	}
	r.directives[name] = fn
	return nil
}

// Directive returns the handler registered for name.
func (r *Registry) Directive(name string) (DirectiveFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.directives[name]
	return fn, ok
}

// expandDirectives replaces every directive block in body with its handler's
// output. A block starts at a `.. name::` line and runs over the following
// lines that are blank or indented by four spaces.
func expandDirectives(ctx context.Context, body []byte, source string, env Env) ([]byte, error) {
	if !bytes.Contains(body, []byte("..")) {
		return body, nil
	}
	var (
		out     bytes.Buffer
		current *Directive
		block   []string
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		html, err := renderDirective(ctx, *current, block, env)
		if err != nil {
			return err
		}
		out.WriteString(string(html))
		out.WriteString("\n\n")
		current, block = nil, nil
		return nil
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for sc.Scan() {
		line := sc.Text()
		if current != nil {
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, directiveIndent) {
				block = append(block, line)
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if m := directiveLine.FindStringSubmatch(line); m != nil {
			current = &Directive{Name: m[1], Argument: strings.TrimSpace(m[2]), Source: source}
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryProgram, "cannot scan page body").
			WithSource(source).Fatal().Build()
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func renderDirective(ctx context.Context, d Directive, block []string, env Env) (template.HTML, error) {
	var fn DirectiveFunc
	if env != nil {
		fn, _ = env.Directive(d.Name)
	}
	if fn == nil {
		return "", errors.ConfigError(fmt.Sprintf("unknown directive %q", d.Name)).
			WithSource(d.Source).WithContext("directive", d.Name).Build()
	}

	lines := make([]string, 0, len(block))
	for _, l := range block {
		lines = append(lines, strings.TrimPrefix(l, directiveIndent))
	}
	// options sit at the top of the block, before the first blank line
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	for ; i < len(lines); i++ {
		m := optionLine.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		if d.Options == nil {
			d.Options = make(map[string]string)
		}
		d.Options[m[1]] = strings.TrimSpace(m[2])
	}
	d.Content = strings.Trim(strings.Join(lines[i:], "\n"), "\n")

	html, err := fn(ctx, d)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryConfig) || errors.SourceOf(err) != "" {
			return "", err
		}
		return "", errors.WrapError(err, errors.CategoryProgram, fmt.Sprintf("directive %q failed", d.Name)).
			WithSource(d.Source).WithContext("directive", d.Name).Fatal().Build()
	}
	return html, nil
}
