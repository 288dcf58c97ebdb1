package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	texttemplate "text/template"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

//go:embed templates
var builtinFS embed.FS

// layoutTemplate defines the "layout" block every page template invokes.
const layoutTemplate = "layout.html"

// Date layouts used by the format_* template functions when none is given.
const (
	DateLayout     = "Jan 2, 2006"
	DateTimeLayout = "Jan 2, 2006, 3:04:05 PM"
	TimeLayout     = "3:04:05 PM"
)

type executor interface {
	Execute(w io.Writer, data any) error
}

// Templates loads page templates from the project template folder, falling
// back to the built-in set. Each page template is compiled together with the
// layout and cached.
type Templates struct {
	dir        string
	autoescape bool

	mu       sync.Mutex
	funcs    map[string]any
	compiled map[string]executor
}

func newTemplates(dir string, autoescape bool) *Templates {
	return &Templates{
		dir:        dir,
		autoescape: autoescape,
		funcs:      map[string]any{},
		compiled:   map[string]executor{},
	}
}

func (t *Templates) addFuncs(funcs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range funcs {
		t.funcs[k] = v
	}
	t.compiled = map[string]executor{}
}

// source reads name from the project folder first, then the built-in set.
func (t *Templates) source(name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if t.dir != "" {
		data, err := os.ReadFile(filepath.Join(t.dir, filepath.FromSlash(clean)))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", errors.WrapError(err, errors.CategoryFileSystem, "cannot read template").
				WithSource(filepath.Join(t.dir, clean)).Fatal().Build()
		}
	}
	data, err := fs.ReadFile(builtinFS, "templates/"+clean)
	if err != nil {
		return "", errors.TemplateError(fmt.Sprintf("template %q not found", name)).
			WithContext("template", name).Fatal().Build()
	}
	return string(data), nil
}

func (t *Templates) compile(name string) (executor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if exe, ok := t.compiled[name]; ok {
		return exe, nil
	}
	layout, err := t.source(layoutTemplate)
	if err != nil {
		return nil, err
	}
	page, err := t.source(name)
	if err != nil {
		return nil, err
	}

	var exe executor
	if t.autoescape {
		set, perr := template.New(layoutTemplate).Funcs(template.FuncMap(t.funcs)).Parse(layout)
		if perr == nil {
			set, perr = set.New(name).Parse(page)
		}
		exe, err = set, perr
	} else {
		set, perr := texttemplate.New(layoutTemplate).Funcs(texttemplate.FuncMap(t.funcs)).Parse(layout)
		if perr == nil {
			set, perr = set.New(name).Parse(page)
		}
		exe, err = set, perr
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "cannot parse template").
			WithContext("template", name).Fatal().Build()
	}
	t.compiled[name] = exe
	return exe, nil
}

func (t *Templates) render(name string, vars map[string]any) (string, error) {
	exe, err := t.compile(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := exe.Execute(&buf, vars); err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "cannot render template").
			WithContext("template", name).Fatal().Build()
	}
	return buf.String(), nil
}

// defaultFuncs are available to every template.
func (b *Builder) defaultFuncs() map[string]any {
	return map[string]any{
		"link_to": func(name string, kv ...any) (string, error) {
			params, err := pairs(kv)
			if err != nil {
				return "", err
			}
			return b.LinkTo(name, params)
		},
		"format_date":     formatTime(DateLayout),
		"format_datetime": formatTime(DateTimeLayout),
		"format_time":     formatTime(TimeLayout),
	}
}

// pairs turns template arguments `"key" value "key" value` into a map.
func pairs(kv []any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("link_to needs key/value pairs, got %d arguments", len(kv))
	}
	params := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("link_to parameter name must be a string, got %T", kv[i])
		}
		params[key] = kv[i+1]
	}
	return params, nil
}

func formatTime(def string) func(t time.Time, layout ...string) string {
	return func(t time.Time, layout ...string) string {
		if t.IsZero() {
			return ""
		}
		l := def
		if len(layout) > 0 && layout[0] != "" {
			l = layout[0]
		}
		return t.Format(l)
	}
}
