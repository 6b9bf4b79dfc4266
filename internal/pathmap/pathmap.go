package pathmap

import (
	"path"
	"sort"
	"strings"
)

// Categories is one host's category table: content category name to
// absolute base directory, plus the designated fallback category.
type Categories struct {
	Dirs     map[string]string
	Fallback string
}

// Dir returns the base directory for a category.
func (c Categories) Dir(name string) (string, bool) {
	dir, ok := c.Dirs[name]
	return dir, ok
}

// ordered returns category names with the most specific base directory
// first (longest prefix wins) and the fallback last. Ties break on name so
// mapping stays deterministic.
func (c Categories) ordered() []string {
	names := make([]string, 0, len(c.Dirs))
	for name := range c.Dirs {
		if name == c.Fallback {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := c.Dirs[names[i]], c.Dirs[names[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return names[i] < names[j]
	})
	if _, ok := c.Dirs[c.Fallback]; ok {
		names = append(names, c.Fallback)
	}
	return names
}

// Map rewrites sourcePath from the source host's layout into the
// destination host's layout.
//
// The first source category whose base directory is a string prefix of
// sourcePath wins. The prefix test is deliberately not segment-aware
// ("/media/movies2" matches base "/media/movie"), preserving the behavior
// existing deployments rely on. When nothing matches, the file flattens to
// its basename under the destination fallback directory.
func Map(sourcePath string, src, dst Categories) string {
	category, remainder := classify(sourcePath, src)
	base := destBase(category, dst)
	if remainder == "" {
		return base
	}
	return path.Join(base, remainder)
}

func classify(sourcePath string, src Categories) (category, remainder string) {
	for _, name := range src.ordered() {
		base := src.Dirs[name]
		if base == "" {
			continue
		}
		if strings.HasPrefix(sourcePath, base) {
			return name, strings.TrimLeft(sourcePath[len(base):], "/")
		}
	}
	return "", path.Base(sourcePath)
}

// destBase resolves the destination base directory: same category when the
// destination defines it, else the destination fallback, else any defined
// category. The order matters; changing it silently reroutes files.
func destBase(category string, dst Categories) string {
	if category != "" {
		if dir, ok := dst.Dirs[category]; ok {
			return dir
		}
	}
	if dir, ok := dst.Dirs[dst.Fallback]; ok {
		return dir
	}
	names := make([]string, 0, len(dst.Dirs))
	for name := range dst.Dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		return dst.Dirs[names[0]]
	}
	return "/"
}
