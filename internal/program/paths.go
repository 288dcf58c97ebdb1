package program

import (
	"path"
	"strings"
)

func splitSlash(p string) (dir, base string) {
	dir, base = path.Split(p)
	return strings.TrimRight(dir, "/"), base
}

func trimExt(base string) string {
	return strings.TrimSuffix(base, path.Ext(base))
}

func joinSlash(parts ...string) string {
	return path.Join(parts...)
}
