// Package tags indexes pages by their `tags` and writes a tag cloud, a page
// per tag and a feed per tag.
package tags

import (
	"context"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "tags"

// Routes registered by the module.
const (
	RouteTag     = "tag"
	RouteTagFeed = "tagfeed"
	RouteTags    = "tags"
)

const (
	byTagKey  = "by_tag"
	byFileKey = "by_file"
	maxSize   = 5
)

var fold = cases.Fold()

// Tag is one entry of the tag cloud.
type Tag struct {
	// Group is the case-folded first letter, for alphabetical sections.
	Group string
	Name  string
	Count int
	// Size ranks Count from 1 to 5 on a logarithmic scale.
	Size int
}

// Module is the tags aggregation module.
type Module struct {
	builder *site.Builder
}

// New returns the tags module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

// Setup registers the tag routes, the get_tags template function and the
// event subscriptions.
func (m *Module) Setup(b *site.Builder) error {
	m.builder = b
	if err := b.RegisterURL(RouteTag, "/tags/<tag>/", "modules.tags.tag_url"); err != nil {
		return err
	}
	if err := b.RegisterURL(RouteTagFeed, "/tags/<tag>/feed.atom", "modules.tags.tagfeed_url"); err != nil {
		return err
	}
	if err := b.RegisterURL(RouteTags, "/tags/", "modules.tags.tags_url"); err != nil {
		return err
	}
	events.Subscribe(b.Bus(), m.onPublished)
	events.Subscribe(b.Bus(), m.onFinishing)
	b.AddTemplateFunc("get_tags", m.Tags)
	return nil
}

func (m *Module) byTag() map[string][]*site.Context {
	return site.Value(m.builder.Storage(Name), byTagKey, func() map[string][]*site.Context {
		return map[string][]*site.Context{}
	})
}

func (m *Module) byFile() map[string][]string {
	return site.Value(m.builder.Storage(Name), byFileKey, func() map[string][]string {
		return map[string][]string{}
	})
}

func (m *Module) onPublished(_ context.Context, e site.FilePublished) error {
	c := e.Context
	tags := c.Tags()
	m.byFile()[c.Source()] = tags
	byTag := m.byTag()
	for _, t := range tags {
		byTag[t] = append(byTag[t], c)
	}
	return nil
}

// TagsOf returns the tags recorded for a source during this pass.
func (m *Module) TagsOf(source string) []string {
	return m.byFile()[source]
}

// Tagged returns the pages carrying tag, newest first.
func (m *Module) Tagged(tag string) []*site.Context {
	entries := append([]*site.Context(nil), m.byTag()[tag]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PubDate().After(entries[j].PubDate())
	})
	return entries
}

// Tags returns the tag cloud sorted by case-folded name.
func (m *Module) Tags() []Tag {
	byTag := m.byTag()
	most := 0
	for _, entries := range byTag {
		most = max(most, len(entries))
	}
	out := make([]Tag, 0, len(byTag))
	for name, entries := range byTag {
		out = append(out, Tag{
			Group: group(name),
			Name:  name,
			Count: len(entries),
			Size:  size(len(entries), most),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := fold.String(out[i].Name), fold.String(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func group(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return ""
	}
	return fold.String(string(r))
}

func size(count, most int) int {
	if most <= 1 {
		return 1
	}
	s := 1 + int(math.Round(float64(maxSize-1)*math.Log(float64(count))/math.Log(float64(most))))
	return min(max(s, 1), maxSize)
}

func (m *Module) onFinishing(ctx context.Context, e site.BuildFinishing) error {
	tags := m.Tags()
	if len(tags) == 0 {
		return nil
	}
	b := e.Builder
	if err := b.WriteTemplate(ctx, "tags.html", RouteTags, nil, map[string]any{"tags": tags}); err != nil {
		return err
	}
	for _, t := range tags {
		entries := m.Tagged(t.Name)
		params := map[string]any{"tag": t.Name}
		vars := map[string]any{"tag": t, "entries": entries}
		if err := b.WriteTemplate(ctx, "tag.html", RouteTag, params, vars); err != nil {
			return err
		}
		if err := b.WriteFeed(RouteTagFeed, params, fmt.Sprintf("Posts tagged %s", t.Name), entries); err != nil {
			return err
		}
	}
	b.Logger().Debug("Tag pages written", logfields.Module(Name), "tags", len(tags))
	return nil
}
