package site

import (
	"git.home.luguber.info/inful/sitebuilder/internal/feed"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// FeedEntries converts contexts into feed entries from their prepared HTML.
func FeedEntries(contexts []*Context) ([]feed.Entry, error) {
	out := make([]feed.Entry, 0, len(contexts))
	for _, c := range contexts {
		html, err := c.RenderContents()
		if err != nil {
			return nil, err
		}
		out = append(out, feed.Entry{
			Title:   c.Title(),
			Slug:    c.Slug(),
			PubDate: c.PubDate(),
			Tags:    c.Tags(),
			Content: string(html),
		})
	}
	return out, nil
}

// WriteFeed renders contexts as an Atom feed into the file of a named route.
// Author, base URL and entry limit come from the root configuration.
func (b *Builder) WriteFeed(route string, params map[string]any, title string, contexts []*Context) error {
	feedPath, err := b.LinkTo(route, params)
	if err != nil {
		return err
	}
	entries, err := FeedEntries(contexts)
	if err != nil {
		return err
	}
	cfg := b.config
	data, err := feed.Generate(feed.Options{
		Title:     title,
		Author:    cfg.RootGetString("author", ""),
		BaseURL:   cfg.RootGetString("canonical_url", feed.DefaultBaseURL),
		FeedPath:  feedPath,
		Limit:     cfg.Root().GetInt("feed.limit", feed.DefaultLimit),
		Language:  cfg.RootGetString("locale", ""),
		Generator: version.Generator,
	}, entries)
	if err != nil {
		return err
	}
	return b.WriteLinkFile(route, params, data)
}
