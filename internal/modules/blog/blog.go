// Package blog collects dated pages into yearly archives and an Atom feed.
package blog

import (
	"context"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/routing"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "blog"

// Routes registered by the module.
const (
	RouteArchive     = "blog_archive"
	RouteYearArchive = "blog_year_archive"
	RouteFeed        = "blog_feed"
)

// DefaultPubDateMatch extracts a publication date from a page's slug.
const DefaultPubDateMatch = "/<int:year>/<int:month>/<int:day>/"

// DefaultFeedTitle is used when `feed.name` is not set.
const DefaultFeedTitle = "Recent Blog Posts"

const yearsKey = "years"

// YearArchive lists one year's entries, newest first.
type YearArchive struct {
	Year    int
	Entries []*site.Context
	Count   int
}

// Module is the blog aggregation module.
type Module struct {
	builder *site.Builder
}

// New returns the blog module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

// Setup registers the archive and feed routes and subscribes to published pages.
func (m *Module) Setup(b *site.Builder) error {
	m.builder = b
	if err := b.RegisterURL(RouteArchive, "/blog/", "modules.blog.archive_url"); err != nil {
		return err
	}
	if err := b.RegisterURL(RouteYearArchive, "/blog/<int:year>/", "modules.blog.archive_year_url"); err != nil {
		return err
	}
	if err := b.RegisterURL(RouteFeed, "/feed.atom", "modules.blog.feed_url"); err != nil {
		return err
	}
	events.Subscribe(b.Bus(), m.onPublished)
	events.Subscribe(b.Bus(), m.onFinishing)
	b.AddTemplateFunc("get_blog_archive", m.Archive)
	return nil
}

// MatchPubDate parses a date out of slug using a route pattern with year,
// month and day placeholders. The pattern must match a prefix of the slug.
func MatchPubDate(slug, pattern string) (time.Time, bool) {
	full := "/" + strings.Trim(pattern, "/") + "/<path:extra>"
	values, ok := routing.Resolve(full, strings.Trim(slug, "/"))
	if !ok {
		return time.Time{}, false
	}
	year, y := values["year"].(int)
	month, mo := values["month"].(int)
	day, d := values["day"].(int)
	if !y || !mo || !d || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func (m *Module) years() map[int][]*site.Context {
	return site.Value(m.builder.Storage(Name), yearsKey, func() map[int][]*site.Context {
		return map[int][]*site.Context{}
	})
}

func (m *Module) onPublished(_ context.Context, e site.FilePublished) error {
	c := e.Context
	if !c.HasPubDate() {
		pattern := c.Config().GetString("modules.blog.pub_date_match", DefaultPubDateMatch)
		if t, ok := MatchPubDate(c.Slug(), pattern); ok {
			c.SetPubDate(t)
		}
	}
	if !c.HasPubDate() || !c.IsText() {
		return nil
	}
	years := m.years()
	y := c.PubDate().Year()
	years[y] = append(years[y], c)
	return nil
}

// Entries returns every collected entry ordered by publication date and then
// `day-order`, newest first.
func (m *Module) Entries() []*site.Context {
	var all []*site.Context
	for _, entries := range m.years() {
		all = append(all, entries...)
	}
	sortEntries(all)
	return all
}

// Archive summarizes the collected entries per year, newest year first.
func (m *Module) Archive() []YearArchive {
	years := m.years()
	out := make([]YearArchive, 0, len(years))
	for y, entries := range years {
		sorted := append([]*site.Context(nil), entries...)
		sortEntries(sorted)
		out = append(out, YearArchive{Year: y, Entries: sorted, Count: len(sorted)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out
}

func sortEntries(entries []*site.Context) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.PubDate().Equal(b.PubDate()) {
			return a.PubDate().After(b.PubDate())
		}
		return a.Config().GetInt("day-order", 0) > b.Config().GetInt("day-order", 0)
	})
}

func (m *Module) onFinishing(ctx context.Context, e site.BuildFinishing) error {
	archive := m.Archive()
	if len(archive) == 0 {
		return nil
	}
	b := e.Builder
	if err := b.WriteTemplate(ctx, "blog/archive.html", RouteArchive, nil, map[string]any{"archive": archive}); err != nil {
		return err
	}
	for _, ya := range archive {
		params := map[string]any{"year": ya.Year}
		if err := b.WriteTemplate(ctx, "blog/year_archive.html", RouteYearArchive, params, map[string]any{"entry": ya}); err != nil {
			return err
		}
	}
	if err := m.writeFeed(b); err != nil {
		return err
	}
	b.Logger().Debug("Blog pages written", logfields.Module(Name), "years", len(archive))
	return nil
}

func (m *Module) writeFeed(b *site.Builder) error {
	title := b.Config().RootGetString("feed.name", DefaultFeedTitle)
	return b.WriteFeed(RouteFeed, nil, title, m.Entries())
}
