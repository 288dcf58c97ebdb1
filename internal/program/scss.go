package program

import (
	"bytes"
	"context"
	"os/exec"
	"path"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// DefaultSCSSCommand compiles a stylesheet; source and destination are appended.
var DefaultSCSSCommand = []string{"sassc", "--sourcemap", "-t", "compact"}

// scssProgram runs an external stylesheet compiler.
type scssProgram struct {
	binding
}

func newSCSS(doc *Document, env Env) Program {
	return &scssProgram{binding{name: NameSCSS, doc: doc, env: env}}
}

// DesiredFilename swaps the extension for .css and keeps the directory.
func (p *scssProgram) DesiredFilename() (string, error) {
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(doc.Source, path.Ext(doc.Source)) + ".css", nil
}

func (p *scssProgram) command(doc *Document) []string {
	cmd := doc.Config.GetStrings("scss.command", DefaultSCSSCommand)
	if len(cmd) == 1 {
		cmd = strings.Fields(cmd[0])
	}
	if len(cmd) == 0 {
		return append([]string(nil), DefaultSCSSCommand...)
	}
	return append([]string(nil), cmd...)
}

func (p *scssProgram) Run(ctx context.Context) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	dst := doc.FullDestination()
	if err := ensureDir(dst); err != nil {
		return err
	}

	argv := append(p.command(doc), doc.FullSource(), dst)
	// #nosec G204 -- the compiler command comes from the project's own configuration
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = doc.ProjectDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.WrapError(err, errors.CategoryProgram, "stylesheet compiler failed").
			WithSource(doc.Source).
			WithContext("command", strings.Join(argv, " ")).
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Fatal().Build()
	}
	return nil
}
