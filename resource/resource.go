// Package resource enumerates files across a set of package root
// directories. A "resource" is any file inside a package directory,
// addressed by its base name; the same name may exist in many packages
// and root order defines which occurrence wins when callers merge.
package resource

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Roots is an ordered list of package root directories. Earlier roots
// take priority over later ones.
type Roots struct {
	dirs    []string
	ignored []string
}

// DefaultIgnored are path substrings excluded from enumeration. User
// overrides and preview packages never contribute defaults.
var DefaultIgnored = []string{"/User/", "/Preferences Editor/"}

type Option func(*Roots)

// WithIgnored replaces the ignored path substrings.
func WithIgnored(ignored ...string) Option {
	return func(r *Roots) {
		r.ignored = ignored
	}
}

func NewRoots(dirs []string, opts ...Option) *Roots {
	r := &Roots{
		dirs:    dirs,
		ignored: DefaultIgnored,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dirs returns the configured root directories in priority order.
func (r *Roots) Dirs() []string {
	return r.dirs
}

// Find returns the paths of all resources with the given base name,
// ordered by root priority and lexicographically within a root. Paths
// containing an ignored substring are skipped. Missing roots are not an
// error; they simply contribute nothing.
func (r *Roots) Find(name string) []string {
	var paths []string
	for _, dir := range r.dirs {
		var matches []string
		err := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() || filepath.Base(path) != name {
				return nil
			}
			if r.isIgnored(path) {
				return nil
			}
			matches = append(matches, path)
			return nil
		})
		if err != nil {
			continue
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths
}

// FindSuffix returns the root-relative, slash-separated paths of all
// resources whose name ends with suffix, ordered by root priority and
// lexicographically within a root.
func (r *Roots) FindSuffix(suffix string) []string {
	var paths []string
	for _, dir := range r.dirs {
		var matches []string
		err := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() || !strings.HasSuffix(path, suffix) {
				return nil
			}
			if r.isIgnored(path) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			matches = append(matches, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			continue
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths
}

// Exists reports whether at least one resource with the given base name
// exists under any root.
func (r *Roots) Exists(name string) bool {
	return len(r.Find(name)) > 0
}

func (r *Roots) isIgnored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, ignored := range r.ignored {
		if strings.Contains(slashed, ignored) {
			return true
		}
	}
	return false
}

// Load reads the content of a resource.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load resource %q", path)
	}
	return string(data), nil
}
