// Package program defines the per-file transformation contract and the
// built-in programs (copy, html, md, scss).
//
// A Program is created for exactly one Document and is only valid while that
// Document is alive; any call after Document.Release returns an internal error.
package program

import (
	"context"
	"html/template"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Program transforms one source file into its output artifact.
type Program interface {
	// Name is the registered program name.
	Name() string
	// DesiredFilename maps the source path to the destination path (both slash separated).
	DesiredFilename() (string, error)
	// Prepare parses the source and fills in the document's rendered fields.
	Prepare(ctx context.Context) error
	// Run writes the destination artifact.
	Run(ctx context.Context) error
	// RenderContents returns the prepared HTML fragment for reuse by modules.
	RenderContents() (template.HTML, error)
}

// Env is what programs need from the builder that owns them.
type Env interface {
	// RenderTemplate renders a named template for doc with the extra vars merged in.
	RenderTemplate(ctx context.Context, name string, doc *Document, vars map[string]any) (string, error)
	// Directive returns the handler registered for a markdown directive.
	Directive(name string) (DirectiveFunc, bool)
}

// Factory creates a program bound to doc.
type Factory func(doc *Document, env Env) Program

// binding ties a program to its document and enforces the document's lifetime.
type binding struct {
	name string
	doc  *Document
	env  Env
}

func (b *binding) Name() string { return b.name }

// document returns the bound document, or an internal error once it is gone.
func (b *binding) document() (*Document, error) {
	if b.doc == nil || b.doc.Released() {
		src := ""
		if b.doc != nil {
			src = b.doc.Source
		}
		return nil, errors.InternalError("document went away, program is invalid").
			WithSource(src).WithContext("program", b.name).Build()
	}
	return b.doc, nil
}

// Prepare is a no-op for programs without a pre-render step.
func (b *binding) Prepare(context.Context) error {
	doc, err := b.document()
	if err != nil {
		return err
	}
	doc.prepared = true
	return nil
}

// RenderContents is empty for programs that produce no HTML.
func (b *binding) RenderContents() (template.HTML, error) {
	if _, err := b.document(); err != nil {
		return "", err
	}
	return "", nil
}

// pageFilename is the default policy: dir/name.ext -> dir/name/index.html and
// dir/index.ext -> dir/index.html.
func (b *binding) pageFilename() (string, error) {
	doc, err := b.document()
	if err != nil {
		return "", err
	}
	dir, base := splitSlash(doc.Source)
	name := trimExt(base)
	if name == "index" {
		return joinSlash(dir, "index.html"), nil
	}
	return joinSlash(dir, name, "index.html"), nil
}

func ensureDir(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create output directory").
			WithSource(filename).Fatal().Build()
	}
	return nil
}
