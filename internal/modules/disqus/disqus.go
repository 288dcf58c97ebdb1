// Package disqus exposes a get_disqus template function that embeds a Disqus
// comment thread for the current page.
//
// Pages opt out with `disqus: false` in their header.
package disqus

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/htmlutil"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "disqus"

const embed = `
<div id="disqus_thread"></div>
<script type="text/javascript">
    %s

    (function() {
        var dsq = document.createElement('script'); dsq.type = 'text/javascript'; dsq.async = true;
        dsq.src = 'https://' + disqus_shortname + '.disqus.com/embed.js';
        (document.getElementsByTagName('head')[0] || document.getElementsByTagName('body')[0]).appendChild(dsq);
    })();
</script>
<noscript>Please enable JavaScript to view the <a href="https://disqus.com/?ref_noscript">comments powered by Disqus.</a></noscript>
<a href="https://disqus.com" class="dsq-brlink">blog comments powered by <span class="logo-disqus">Disqus</span></a>
`

// Module is the disqus module.
type Module struct {
	shortname string
	developer bool
	canonical string
}

// New returns the disqus module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

// Setup reads the site settings and registers get_disqus.
func (m *Module) Setup(b *site.Builder) error {
	cfg := b.Config()
	m.shortname = cfg.RootGetString("modules.disqus.shortname", "")
	if m.shortname == "" {
		return errors.ConfigError("disqus needs modules.disqus.shortname").
			WithSource(cfg.Origin()).WithContext("module", Name).Build()
	}
	m.developer = cfg.Root().GetBool("modules.disqus.developer", false)
	m.canonical = cfg.RootGetString("canonical_url", "")
	b.AddTemplateFunc("get_disqus", m.Thread)
	return nil
}

// Thread renders the comment thread for the page behind c, or nothing when
// the page disabled comments.
func (m *Module) Thread(c *site.Context) (template.HTML, error) {
	if !c.Config().GetBool("disqus", true) {
		return "", nil
	}
	vars := map[string]any{
		"shortname": m.shortname,
		"title":     c.Title(),
	}
	if m.developer {
		vars["developer"] = 1
	}
	if m.canonical != "" {
		u, err := pageURL(m.canonical, c.Slug())
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryConfig, "invalid canonical_url").
				WithSource(c.Source()).WithContext("module", Name).Build()
		}
		vars["url"] = u
	}
	js, err := jsVars(vars)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryModule, "cannot encode disqus settings").
			WithSource(c.Source()).WithContext("module", Name).Build()
	}
	return template.HTML(fmt.Sprintf(embed, js)), nil // #nosec G203 -- values are JSON encoded
}

// pageURL resolves slug against the canonical URL the way a browser would.
func pageURL(canonical, slug string) (string, error) {
	base, err := url.Parse(canonical)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(slug)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(base.ResolveReference(ref).String(), "/") + "/", nil
}

// jsVars emits one `var disqus_<key> = <value>;` line per entry, sorted by key.
func jsVars(vars map[string]any) (string, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := vars[k]
		if s, ok := v.(string); ok {
			v = htmlutil.StripTags(s)
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("var disqus_%s = %s;", k, enc))
	}
	return strings.Join(lines, "\n    "), nil
}
