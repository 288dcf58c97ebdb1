package program

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	texttemplate "text/template"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/htmlutil"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
)

// DefaultTemplate renders pages that do not name a template.
const DefaultTemplate = "page.html"

// templated is shared by the programs that render a body into a page template.
type templated struct {
	binding
}

func (p *templated) DesiredFilename() (string, error) {
	return p.pageFilename()
}

func (p *templated) RenderContents() (template.HTML, error) {
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return doc.HTML, nil
}

// Run renders the page template with the prepared fragment.
func (p *templated) Run(ctx context.Context) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	name := doc.Config.GetString("template", DefaultTemplate)
	vars := map[string]any{
		"page": map[string]any{
			"title":      htmlutil.StripTags(doc.Title),
			"html_title": template.HTML("<h1>" + doc.Title + "</h1>"), // #nosec G203 -- titles are author-controlled markup
			"fragment":   doc.HTML,
		},
	}
	out, err := p.env.RenderTemplate(ctx, name, doc, vars)
	if err != nil {
		return err
	}

	dst := doc.FullDestination()
	if err := ensureDir(dst); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(dst), []byte(out+"\n"), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot write page").
			WithSource(doc.Source).WithContext("destination", dst).Fatal().Build()
	}
	return nil
}

// body returns the page body, executed as a template first when the page sets `jinja`.
func (p *templated) body(doc *Document) ([]byte, error) {
	if !doc.Config.GetBool("jinja", false) {
		return doc.Body, nil
	}
	tmpl, err := texttemplate.New(doc.Source).Option("missingkey=zero").Parse(string(doc.Body))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "cannot parse page body as template").
			WithSource(doc.Source).Fatal().Build()
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc.Fields); err != nil {
		return nil, errors.WrapError(err, errors.CategoryTemplate, "cannot execute page body template").
			WithSource(doc.Source).Fatal().Build()
	}
	return buf.Bytes(), nil
}

// htmlProgram passes an HTML body through unchanged into the page template.
type htmlProgram struct {
	templated
}

func newHTML(doc *Document, env Env) Program {
	return &htmlProgram{templated{binding{name: NameHTML, doc: doc, env: env}}}
}

func (p *htmlProgram) Prepare(context.Context) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	body, err := p.body(doc)
	if err != nil {
		return err
	}
	doc.HTML = template.HTML(body) // #nosec G203 -- page bodies are trusted author content
	doc.prepared = true
	return nil
}

// markdownProgram renders a Markdown body.
type markdownProgram struct {
	templated
}

func newMarkdown(doc *Document, env Env) Program {
	return &markdownProgram{templated{binding{name: NameMarkdown, doc: doc, env: env}}}
}

func (p *markdownProgram) Prepare(ctx context.Context) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	body, err := p.body(doc)
	if err != nil {
		return err
	}
	body, err = expandDirectives(ctx, body, doc.Source, p.env)
	if err != nil {
		return err
	}

	rendered, err := markdown.Render(body, markdown.Options{})
	if err != nil {
		return errors.WrapError(err, errors.CategoryProgram, "cannot render markdown").
			WithSource(doc.Source).Fatal().Build()
	}
	slug := doc.Slug()
	fixed, err := htmlutil.FixRelativeURLs("/", slug, rendered)
	if err != nil {
		return errors.WrapError(err, errors.CategoryProgram, "cannot rewrite links").
			WithSource(doc.Source).Fatal().Build()
	}
	doc.HTML = template.HTML(fixed) // #nosec G203 -- rendered from trusted author content

	if doc.Summary == "" {
		if s := htmlutil.Summary(fixed); s != "" {
			doc.Summary = template.HTML(s) // #nosec G203 -- derived from the rendered page
		}
	}

	og, err := htmlutil.ExtractOgProperties(fixed)
	if err != nil {
		return errors.WrapError(err, errors.CategoryProgram, "cannot inspect rendered page").
			WithSource(doc.Source).Fatal().Build()
	}
	doc.Description = doc.Config.GetString("description", og.Description)

	base := doc.Config.RootGetString("canonical_url", "/")
	doc.Image, doc.ImageAlt = "", ""
	if img := doc.Config.GetString("image", ""); img != "" {
		doc.Image = htmlutil.FixRelativeURL(base, slug, img)
		doc.ImageAlt = doc.Config.GetString("image_alt", "")
	} else if og.Image != "" {
		doc.Image = htmlutil.FixRelativeURL(base, slug, og.Image)
		doc.ImageAlt = og.ImageAlt
	}
	doc.prepared = true
	return nil
}

