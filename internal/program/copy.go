package program

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// copyProgram duplicates the source byte for byte at an unchanged path.
type copyProgram struct {
	binding
}

func newCopy(doc *Document, env Env) Program {
	return &copyProgram{binding{name: NameCopy, doc: doc, env: env}}
}

func (p *copyProgram) DesiredFilename() (string, error) {
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return doc.Source, nil
}

func (p *copyProgram) Run(context.Context) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	dst := doc.FullDestination()
	if err := ensureDir(dst); err != nil {
		return err
	}
	return copyFile(doc.FullSource(), dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot open source").
			WithSource(src).Fatal().Build()
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot stat source").
			WithSource(src).Fatal().Build()
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create destination").
			WithSource(src).WithContext("destination", dst).Fatal().Build()
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.WrapError(err, errors.CategoryFileSystem, "copy failed").
			WithSource(src).WithContext("destination", dst).Fatal().Build()
	}
	if err := out.Close(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot close destination").
			WithSource(src).WithContext("destination", dst).Fatal().Build()
	}
	return nil
}
