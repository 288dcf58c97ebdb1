// Package htmlutil rewrites and inspects rendered HTML fragments.
package htmlutil

import (
	"bytes"
	"net/url"
	"path"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// BreakComment separates a page's summary from the rest of its body.
const BreakComment = "\n<!-- break -->\n"

// urlAttrs lists the element attributes that hold links to rewrite.
var urlAttrs = map[atom.Atom][]string{
	atom.Img:    {"src"},
	atom.A:      {"href"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Source: {"src"},
}

// FixRelativeURL makes input absolute. Absolute URLs are returned unchanged;
// root-relative paths are joined to base; other paths are first resolved
// against slug, the page's own directory-style URL.
func FixRelativeURL(base, slug, input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return input
	}
	if u.Path == "" {
		return input
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = path.Clean(path.Join(slug, p))
	}
	ref := &url.URL{Path: p, RawQuery: u.RawQuery, Fragment: u.Fragment}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// FixRelativeURLs rewrites links inside an HTML fragment with FixRelativeURL.
func FixRelativeURLs(base, slug, fragment string) (string, error) {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			attrs, ok := urlAttrs[el.DataAtom]
			if !ok {
				return
			}
			for i, a := range el.Attr {
				if a.Namespace != "" || !slices.Contains(attrs, a.Key) {
					continue
				}
				if a.Val == "" || a.Val == "#" {
					continue
				}
				el.Attr[i].Val = FixRelativeURL(base, slug, a.Val)
			}
		})
	}
	return renderNodes(nodes)
}

// Summary returns the part of content before the break comment, or all of
// content when there is none.
func Summary(content string) string {
	before, _, found := strings.Cut(content, BreakComment)
	if !found {
		return content
	}
	return strings.TrimSpace(before)
}

// OgProperties holds Open Graph style values discovered in a fragment.
type OgProperties struct {
	Description string
	Image       string
	ImageAlt    string
}

// ExtractOgProperties uses the first <p> as description and the first <img> as image.
func ExtractOgProperties(fragment string) (OgProperties, error) {
	var props OgProperties
	nodes, err := parseFragment(fragment)
	if err != nil {
		return props, err
	}
	var foundP, foundImg bool
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			switch el.DataAtom {
			case atom.P:
				if !foundP {
					props.Description = strings.TrimSpace(textOf(el))
					foundP = true
				}
			case atom.Img:
				if !foundImg {
					props.Image = attr(el, "src")
					props.ImageAlt = attr(el, "alt")
					foundImg = true
				}
			}
		})
	}
	return props, nil
}

// StripTags returns the text content of an HTML snippet.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	nodes, err := parseFragment(s)
	if err != nil {
		return s
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(textOf(n))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func parseFragment(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryProgram, "cannot parse HTML fragment").Fatal().Build()
	}
	return nodes, nil
}

func renderNodes(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", errors.WrapError(err, errors.CategoryProgram, "cannot render HTML fragment").Fatal().Build()
		}
	}
	return buf.String(), nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
