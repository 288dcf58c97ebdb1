package program

import (
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/globs"
)

// DefaultMapping is used when no configuration level declares `programs`.
var DefaultMapping = []config.Entry{
	{Key: "*.html", Value: NameHTML},
	{Key: "*.md", Value: NameMarkdown},
	{Key: "*.scss", Value: NameSCSS},
}

// Guess returns the program for filename: the first mapping entry whose glob
// matches, in mapping order, or copy when none does. An empty mapping selects
// DefaultMapping.
func Guess(mapping []config.Entry, filename string) (string, error) {
	if len(mapping) == 0 {
		mapping = DefaultMapping
	}
	for _, e := range mapping {
		ok, err := globs.Match(e.Key, filename)
		if err != nil {
			return "", errors.ConfigError(fmt.Sprintf("invalid program pattern %q", e.Key)).
				WithCause(err).Build()
		}
		if ok {
			return e.Value, nil
		}
	}
	return NameCopy, nil
}

// ForNode picks the program for a file configured by node: an explicit
// `program` key wins, otherwise the merged `programs` mapping decides.
func ForNode(node *config.Node, filename string) (string, error) {
	if name := node.GetString("program", ""); name != "" {
		return name, nil
	}
	return Guess(node.ListEntries("programs"), filename)
}

func checkPattern(pattern string) error {
	_, err := globs.Compile(pattern)
	return err
}
