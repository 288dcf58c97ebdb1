// Package highlight renders `code-block` directives with chroma and ships the
// matching stylesheet into the static folder.
package highlight

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/program"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "highlight"

// Stylesheet is the static file holding the highlighting rules.
const Stylesheet = "_highlight.css"

// DefaultStyle is used when `modules.highlight.style` is unset.
const DefaultStyle = "friendly"

// Directives handled by the module.
var Directives = []string{"code-block", "sourcecode"}

// Module is the highlight module.
type Module struct {
	builder *site.Builder
	style   *chroma.Style
}

// New returns the highlight module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

// Setup resolves the configured style and registers the directives.
func (m *Module) Setup(b *site.Builder) error {
	name := b.Config().GetString("modules.highlight.style", DefaultStyle)
	style, ok := styles.Registry[name]
	if !ok {
		return errors.ConfigError(fmt.Sprintf("unknown highlight style %q", name)).
			WithSource(b.Config().Origin()).WithContext("module", Name).Build()
	}
	m.builder = b
	m.style = style

	for _, d := range Directives {
		if err := b.Registry().RegisterDirective(d, m.codeBlock); err != nil {
			return err
		}
	}
	events.Subscribe(b.Bus(), m.injectStylesheet)
	events.Subscribe(b.Bus(), m.writeStylesheet)
	return nil
}

func (m *Module) codeBlock(_ context.Context, d program.Directive) (template.HTML, error) {
	if d.Argument == "" {
		return "", errors.ConfigError(fmt.Sprintf("%s needs a language argument", d.Name)).
			WithSource(d.Source).WithContext("directive", d.Name).Build()
	}
	lexer := lexers.Get(d.Argument)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	opts := []chromahtml.Option{chromahtml.WithClasses(true)}
	if _, ok := d.Options["linenos"]; ok {
		opts = append(opts, chromahtml.WithLineNumbers(true), chromahtml.LineNumbersInTable(d.Options["linenos"] == "table"))
	}
	formatter := chromahtml.New(opts...)

	it, err := lexer.Tokenise(nil, d.Content+"\n")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, m.style, it); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil // #nosec G203 -- chroma escapes the source text
}

func (m *Module) injectStylesheet(_ context.Context, e site.FileProcessing) error {
	e.Context.AddStylesheet(Stylesheet, "", "")
	return nil
}

func (m *Module) writeStylesheet(context.Context, site.BuildFinishing) error {
	f, err := m.builder.OpenStaticFile(Stylesheet)
	if err != nil {
		return err
	}
	werr := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(f, m.style)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		return errors.WrapError(werr, errors.CategoryFileSystem, "cannot write highlight stylesheet").
			WithSource(m.builder.StaticFilename(Stylesheet)).WithContext("module", Name).Fatal().Build()
	}
	return nil
}
