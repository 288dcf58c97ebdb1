package config

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// LoadProject builds the root node for the project at dir.
// A missing config.yml yields an empty root; a malformed one is fatal.
// ${VAR} references in the root config are expanded from the environment.
func LoadProject(dir string) (*Node, error) {
	loadEnvFiles(dir)

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return NewRoot(path, NewLayer(), nil)
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot read project configuration").
			WithSource(path).Fatal().Build()
	}

	expanded := os.ExpandEnv(string(data))
	layer, err := ParseLayer(path, []byte(expanded))
	if err != nil {
		return nil, err
	}
	return NewRoot(path, layer, nil)
}

// ExampleConfig is written by the init command.
const ExampleConfig = `# Site configuration
canonical_url: https://example.com/
output_folder: _build
author: Site Author
active_modules: [blog, tags]

# Glob pattern -> program, first match wins.
programs:
  "*.md": md
  "*.html": html
  "*.scss": scss

# Declaring ignore_files replaces the built-in list, so repeat it here.
ignore_files:
  - ".*"
  - "_*"
  - "*.yml"
  - "Makefile"
  - "README"
  - "*.conf"
  - "*.draft.md"

# Build history (sqlite), shown by the history command.
journal: _history.db

feed:
  name: My Site
  limit: 10

modules:
  blog:
    archive_url: /blog/
    pub_date_match: /<int:year>/<int:month>/<int:day>/
`
