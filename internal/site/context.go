package site

import (
	"context"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/program"
)

// DefaultTitle is used when a page declares no title.
const DefaultTitle = "Untitled"

// DefaultTextExtensions selects the sources aggregation modules treat as pages.
var DefaultTextExtensions = []string{".rst", ".html", ".md"}

// Context is the build unit of one source file. It exclusively owns its
// Program for the duration of one pass.
type Context struct {
	builder     *Builder
	doc         *program.Document
	program     program.Program
	programName string
}

// newContext resolves the program, metadata overlay and destination of source
// (slash separated, relative to the project directory).
func newContext(b *Builder, dirNode *config.Node, source string) (*Context, error) {
	name, err := program.ForNode(dirNode, source)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot select program").
			WithSource(source).Fatal().Build()
	}
	def, err := b.registry.Lookup(name)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot select program").
			WithSource(source).Fatal().Build()
	}

	doc := &program.Document{
		Source:     source,
		ProjectDir: b.projectDir,
		OutputDir:  b.outputDir,
		Fields:     map[string]any{},
		Title:      DefaultTitle,
	}
	full := doc.FullSource()

	layer := config.NewLayer()
	if def.FrontMatter {
		md, err := frontmatter.Load(full)
		if err != nil {
			return nil, err
		}
		layer = md.Layer
		doc.Body = md.Body
	}
	node, err := dirNode.Overlay(full, layer)
	if err != nil {
		return nil, err
	}
	doc.Config = node
	for _, k := range node.LocalKeys() {
		v, _ := node.LocalGet(k)
		doc.Fields[k] = v
	}

	if def.FrontMatter {
		doc.Title = node.GetString("title", DefaultTitle)
		if summary := node.GetString("summary", ""); summary != "" {
			rendered, err := markdown.Render([]byte(summary), markdown.Options{})
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryProgram, "cannot render summary").
					WithSource(source).Fatal().Build()
			}
			doc.Summary = template.HTML(rendered) // #nosec G203 -- summaries are author content
		}
		if t, ok := node.GetTime("pub_date"); ok {
			doc.PubDate = t
		}
	}

	c := &Context{builder: b, doc: doc, programName: name}
	c.program = def.New(doc, c)

	var dst string
	if v, ok := node.LocalGet("destination_filename"); ok {
		dst, _ = v.(string)
	}
	if dst == "" {
		if dst, err = c.program.DesiredFilename(); err != nil {
			return nil, err
		}
	}
	doc.Destination = path.Join(strings.TrimLeft(b.router.Prefix(), "/"), strings.TrimLeft(dst, "/"))
	return c, nil
}

// Document exposes the per-file state programs fill in.
func (c *Context) Document() *program.Document { return c.doc }

// Program returns the program bound to this context.
func (c *Context) Program() program.Program { return c.program }

// ProgramName is the registered name of the context's program.
func (c *Context) ProgramName() string { return c.programName }

// Builder returns the owning builder.
func (c *Context) Builder() *Builder { return c.builder }

// Config is the file's overlay node.
func (c *Context) Config() *config.Node { return c.doc.Config }

func (c *Context) Source() string         { return c.doc.Source }
func (c *Context) Destination() string    { return c.doc.Destination }
func (c *Context) Slug() string           { return c.doc.Slug() }
func (c *Context) URL() string            { return c.doc.URL() }
func (c *Context) Title() string          { return c.doc.Title }
func (c *Context) Summary() template.HTML { return c.doc.Summary }
func (c *Context) PubDate() time.Time     { return c.doc.PubDate }
func (c *Context) HasPubDate() bool       { return c.doc.HasPubDate() }
func (c *Context) Public() bool           { return c.doc.Public() }
func (c *Context) Links() []program.Link  { return c.doc.Links }

// SetPubDate lets modules supply a publication date the page did not declare.
func (c *Context) SetPubDate(t time.Time) { c.doc.PubDate = t }

// FullDestination is the absolute output filename.
func (c *Context) FullDestination() string { return c.doc.FullDestination() }

// IsNew reports whether the destination does not exist yet.
func (c *Context) IsNew() bool {
	_, err := os.Stat(c.doc.FullDestination())
	return os.IsNotExist(err)
}

// NeedsBuild applies the staleness policy: the destination is missing, or it
// is older than the source, or older than the sidecar metadata file.
func (c *Context) NeedsBuild() (bool, error) {
	dst, err := os.Stat(c.doc.FullDestination())
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "cannot stat destination").
			WithSource(c.doc.Source).Fatal().Build()
	}
	if side, err := os.Stat(c.doc.FullSidecar()); err == nil && dst.ModTime().Before(side.ModTime()) {
		return true, nil
	}
	src, err := os.Stat(c.doc.FullSource())
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "cannot stat source").
			WithSource(c.doc.Source).Fatal().Build()
	}
	return dst.ModTime().Before(src.ModTime()), nil
}

// IsText reports whether the source extension is one of `text_extensions`.
func (c *Context) IsText() bool {
	exts := c.doc.Config.GetStrings("text_extensions", DefaultTextExtensions)
	return slices.Contains(exts, filepath.Ext(c.doc.Source))
}

// Tags returns the page's tags, merged across the configuration chain.
func (c *Context) Tags() []string {
	tags, _ := c.doc.Config.MergedGet("tags")
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// AddStylesheet links a stylesheet from the static folder into the page head.
func (c *Context) AddStylesheet(href, typ, media string) {
	if typ == "" {
		typ = "text/css"
	}
	c.doc.Links = append(c.doc.Links, program.Link{
		Href:  c.builder.StaticURL(href),
		Type:  typ,
		Media: media,
		Rel:   "stylesheet",
	})
}

// RenderContents returns the prepared HTML fragment.
func (c *Context) RenderContents() (template.HTML, error) {
	return c.program.RenderContents()
}

// RenderTemplate renders name with the context's default variables under vars.
func (c *Context) RenderTemplate(ctx context.Context, name string, _ *program.Document, vars map[string]any) (string, error) {
	merged := map[string]any{
		"source_filename": c.doc.Source,
		"program_name":    c.programName,
		"links":           c.doc.Links,
		"ctx":             c,
		"config":          c.doc.Config,
		"url":             c.doc.URL(),
	}
	for k, v := range vars {
		merged[k] = v
	}
	return c.builder.RenderTemplate(ctx, name, merged)
}

// Directive returns the markdown directive handler registered under name.
func (c *Context) Directive(name string) (program.DirectiveFunc, bool) {
	return c.builder.registry.Directive(name)
}

// Release ends the context's lifetime; its program fails from now on.
func (c *Context) Release() { c.doc.Release() }
