package frontmatter

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// SidecarExt is the extension of per-file metadata files.
const SidecarExt = ".yml"

// SidecarPath returns the sidecar metadata path for a source file:
// the same basename with a .yml extension.
func SidecarPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + SidecarExt
}

// ParseHeader decodes a raw header block into a configuration layer.
func ParseHeader(origin string, header []byte) (*config.Layer, error) {
	layer, err := config.ParseLayer(origin, header)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "malformed front-matter").
			WithSource(origin).Fatal().Build()
	}
	return layer, nil
}

// LoadSidecar reads the sidecar metadata for source. A missing sidecar yields
// an empty layer; one that is not a mapping is a configuration error.
func LoadSidecar(source string) (*config.Layer, error) {
	path := SidecarPath(source)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return config.NewLayer(), nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot read sidecar metadata").
			WithSource(path).Fatal().Build()
	}
	return config.ParseLayer(path, data)
}

// Metadata is the combined per-file declarations plus the page body.
type Metadata struct {
	// Layer holds sidecar keys overridden by header keys.
	Layer *config.Layer
	// Body is the source after the header block.
	Body []byte
	// HadHeader reports whether the source carried a header block.
	HadHeader bool
}

// Load reads source, splits off its header and merges it over the sidecar layer.
func Load(source string) (*Metadata, error) {
	sidecar, err := LoadSidecar(source)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot read source").
			WithSource(source).Fatal().Build()
	}
	header, body, had, _ := Split(content)
	layer := sidecar
	if had {
		h, err := ParseHeader(source, header)
		if err != nil {
			return nil, err
		}
		layer = sidecar.Merge(h)
	}
	return &Metadata{Layer: layer, Body: body, HadHeader: had}, nil
}
