// Package catalog maps indexed top directories to the index locations that
// own them and lists the directory tree a user can restrict searches to.
package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// Unrestricted is the scope token meaning "every index". It can never be a
// real directory because it is not an absolute path and contains '<'.
const Unrestricted = "<all>"

// Entry maps a top directory to the index location that indexes it.
type Entry struct {
	Dir      string `json:"dir"`
	Location string `json:"location"`
}

// Source is an index to catalog: its configuration root and location.
type Source struct {
	ConfRoot string
	Location string
}

// Build lists the top directories of every source, in source order and
// then configuration order. A directory indexed by several sources keeps
// one entry per source. Sources whose configuration cannot be read are
// logged and contribute nothing.
func Build(r idxconf.Reader, sources []Source) []Entry {
	logger := log.ForService("catalog")
	var entries []Entry
	for _, src := range sources {
		cfg, err := r.Load(src.ConfRoot)
		if err != nil {
			logger.Warnf("no directories for index %s: %v", src.Location, err)
			continue
		}
		for _, dir := range cfg.TopDirs {
			entries = append(entries, Entry{Dir: dir, Location: src.Location})
		}
	}
	return entries
}

// Dirs returns the distinct directories of entries in catalog order.
func Dirs(entries []Entry) []string {
	seen := make(map[string]bool, len(entries))
	var dirs []string
	for _, e := range entries {
		if seen[e.Dir] {
			continue
		}
		seen[e.Dir] = true
		dirs = append(dirs, e.Dir)
	}
	return dirs
}

// BrowseTree returns the scope choices for entries: Unrestricted followed,
// for each top directory, by the directory itself and its subdirectories
// down to depth levels. Names are relative to the top directory's parent,
// so /home/ann/docs/projects becomes docs/projects. Hidden directories and
// directories that vanished are skipped.
func BrowseTree(entries []Entry, depth int) []string {
	tree := []string{Unrestricted}
	for _, top := range Dirs(entries) {
		parent := filepath.Dir(top)
		for _, dir := range walkDepth(top, depth) {
			rel, err := filepath.Rel(parent, dir)
			if err != nil {
				continue
			}
			tree = append(tree, filepath.ToSlash(rel))
		}
	}
	return tree
}

func walkDepth(top string, depth int) []string {
	if !isDir(top) {
		return nil
	}
	dirs := []string{top}
	level := []string{top}
	for d := 1; d <= depth; d++ {
		var next []string
		for _, dir := range level {
			matches, err := filepath.Glob(filepath.Join(globEscape(dir), "*"))
			if err != nil {
				continue
			}
			for _, m := range matches {
				if strings.HasPrefix(filepath.Base(m), ".") || !isDir(m) {
					continue
				}
				next = append(next, m)
			}
		}
		dirs = append(dirs, next...)
		level = next
	}
	return dirs
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// globEscape quotes glob metacharacters in a literal path.
func globEscape(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
