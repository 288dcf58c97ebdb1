package program

import (
	"html/template"
	"path"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// Link is an extra <link> element a page asks its layout to emit.
type Link struct {
	Href  string
	Type  string
	Media string
	Rel   string
}

// Document is the mutable per-file state a program reads and fills in.
// It lives for exactly one build pass.
type Document struct {
	// Source is slash separated and relative to the project directory.
	Source     string
	ProjectDir string
	OutputDir  string
	// Destination is relative to OutputDir.
	Destination string
	// Config is the file's overlay node (front-matter over sidecar over directory config).
	Config *config.Node
	// Fields holds the raw header and sidecar declarations.
	Fields map[string]any
	// Body is the source with any header removed.
	Body []byte

	Title       string
	Summary     template.HTML
	HTML        template.HTML
	PubDate     time.Time
	Description string
	Image       string
	ImageAlt    string
	Links       []Link

	prepared bool
	released bool
}

// Slug is the URL-stable identifier of the page: the source path without its
// extension, or the containing directory for index files.
func (d *Document) Slug() string {
	dir, file := path.Split(d.Source)
	base := strings.TrimSuffix(file, path.Ext(file))
	if base == "index" {
		return strings.TrimRight(dir, "/")
	}
	return path.Join(dir, base)
}

// URL is the canonical URL of the page.
func (d *Document) URL() string {
	base := "/"
	if d.Config != nil {
		base = d.Config.GetString("canonical_url", "/")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + d.Slug()
}

// FullSource is the absolute source filename.
func (d *Document) FullSource() string {
	return filepath.Join(d.ProjectDir, filepath.FromSlash(d.Source))
}

// FullDestination is the absolute output filename.
func (d *Document) FullDestination() string {
	return filepath.Join(d.OutputDir, filepath.FromSlash(d.Destination))
}

// FullSidecar is the absolute filename of the page's sidecar metadata.
func (d *Document) FullSidecar() string {
	return frontmatter.SidecarPath(d.FullSource())
}

// HasPubDate reports whether a publication date is known.
func (d *Document) HasPubDate() bool {
	return !d.PubDate.IsZero()
}

// Public reports whether the page should be announced to aggregation modules.
func (d *Document) Public() bool {
	if d.Config == nil {
		return true
	}
	return d.Config.GetBool("public", true)
}

// Prepared reports whether Prepare completed for this pass.
func (d *Document) Prepared() bool { return d.prepared }

// Release ends the document's lifetime. Programs bound to it fail afterwards.
func (d *Document) Release() { d.released = true }

// Released reports whether Release was called.
func (d *Document) Released() bool { return d.released }
