// Package markdown renders page bodies to HTML fragments.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Options controls how Markdown is rendered.
type Options struct {
	// HardWraps renders single newlines as <br>.
	HardWraps bool
	// SafeMode drops raw HTML instead of passing it through.
	// Raw HTML is kept by default so `<!-- break -->` markers survive rendering.
	SafeMode bool
}

// New returns a goldmark instance configured from opts.
func New(opts Options) goldmark.Markdown {
	var htmlOpts []renderer.Option
	if !opts.SafeMode {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(htmlOpts...),
	)
}

// Render converts a Markdown body (front-matter already removed) into an HTML fragment.
func Render(body []byte, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := New(opts).Convert(body, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
