// Package feed renders Atom documents for aggregation modules.
package feed

import (
	"encoding/xml"
	"net/url"
	"sort"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/htmlutil"
)

// Defaults applied by Generate.
const (
	DefaultLimit   = 10
	DefaultBaseURL = "http://localhost/"
	atomNS         = "http://www.w3.org/2005/Atom"
)

// Entry is one page offered to a feed.
type Entry struct {
	Title string
	// Slug is relative to the base URL.
	Slug    string
	PubDate time.Time
	Tags    []string
	// Content is the page's HTML fragment; relative links are made absolute.
	Content string
}

// Options describe the feed itself.
type Options struct {
	Title  string
	Author string
	// BaseURL is the site's canonical URL.
	BaseURL string
	// FeedPath is the URL path the feed is served from.
	FeedPath string
	Limit    int
	Language string
	// Generator names the producing program.
	Generator string
}

type atomFeed struct {
	XMLName   xml.Name    `xml:"feed"`
	XMLNS     string      `xml:"xmlns,attr"`
	Lang      string      `xml:"xml:lang,attr,omitempty"`
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Updated   string      `xml:"updated"`
	Author    *atomPerson `xml:"author,omitempty"`
	Links     []atomLink  `xml:"link"`
	Generator string      `xml:"generator,omitempty"`
	Entries   []atomEntry `xml:"entry"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Updated    string         `xml:"updated"`
	Published  string         `xml:"published"`
	Link       atomLink       `xml:"link"`
	Categories []atomCategory `xml:"category"`
	Content    atomContent    `xml:"content"`
}

// Generate renders the newest entries (Options.Limit, default 10) as an Atom
// document. The feed is as recent as its newest entry.
func Generate(opts Options, entries []Entry) ([]byte, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, errors.ConfigError("invalid canonical_url").
			WithContext("canonical_url", base).WithCause(err).Build()
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PubDate.After(sorted[j].PubDate)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	feedURL := resolve(baseURL, opts.FeedPath)
	doc := atomFeed{
		XMLNS:     atomNS,
		Lang:      opts.Language,
		ID:        feedURL,
		Title:     opts.Title,
		Links:     []atomLink{{Href: base}, {Href: feedURL, Rel: "self"}},
		Generator: opts.Generator,
	}
	if doc.Lang == "" {
		doc.Lang = "en"
	}
	if opts.Author != "" {
		doc.Author = &atomPerson{Name: opts.Author}
	}
	if len(sorted) > 0 {
		doc.Updated = stamp(sorted[0].PubDate)
	} else {
		doc.Updated = stamp(time.Now())
	}

	for _, e := range sorted {
		entryURL := resolve(baseURL, e.Slug)
		content, err := htmlutil.FixRelativeURLs(base, e.Slug, e.Content)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryModule, "cannot rewrite feed entry links").
				WithContext("slug", e.Slug).Fatal().Build()
		}
		tags := append([]string(nil), e.Tags...)
		sort.Strings(tags)
		cats := make([]atomCategory, 0, len(tags))
		for _, t := range tags {
			cats = append(cats, atomCategory{Term: t})
		}
		doc.Entries = append(doc.Entries, atomEntry{
			ID:         entryURL,
			Title:      e.Title,
			Updated:    stamp(e.PubDate),
			Published:  stamp(e.PubDate),
			Link:       atomLink{Href: entryURL, Rel: "alternate"},
			Categories: cats,
			Content:    atomContent{Type: "html", Body: content},
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryModule, "cannot encode feed").Fatal().Build()
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return base.String() + ref
	}
	return base.ResolveReference(r).String()
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
