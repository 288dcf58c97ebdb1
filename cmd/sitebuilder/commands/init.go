package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing files"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	fmt.Println("Initializing project in", root.Project)
	return RunInit(root.Project, i.Force, time.Now())
}

// RunInit writes config.yml and a dated sample post below dir.
func RunInit(dir string, force bool, now time.Time) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create project directory").
			WithSource(dir).Fatal().Build()
	}

	page, err := frontmatter.Render([]frontmatter.Field{
		{Key: "title", Value: "Hello World"},
		{Key: "tags", Value: []string{"welcome"}},
	}, "This is your first post. Text above the break marker becomes the summary.\n\n<!-- break -->\n\nEdit or delete it, then run `sitebuilder build`.\n")
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "cannot render sample page").Build()
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, config.FileName), []byte(config.ExampleConfig)},
		{filepath.Join(dir, now.Format("2006/01/02"), "hello-world.md"), page},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !force {
			return errors.ValidationError("file already exists (use --force to overwrite)").
				WithSource(f.path).Build()
		}
	}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "cannot create directory").
				WithSource(f.path).Fatal().Build()
		}
		if err := os.WriteFile(f.path, f.data, 0o600); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "cannot write file").
				WithSource(f.path).Fatal().Build()
		}
		fmt.Printf("Wrote %s\n", f.path)
	}
	return nil
}
