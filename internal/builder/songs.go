package builder

import (
	"fmt"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/songbuilder/internal/descriptor"
	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
)

const (
	keyTitle    = "title"
	keyAuthor   = "author"
	keyLang     = "lang"
	keyTemplate = "template"
	keyContent  = "content"

	songsSubdir     = "songs"
	templatesSubdir = "templates"
)

var defaultContent = []string{"*.sg", "*.csg"}

// Song is one song file selected for the book.
type Song struct {
	Name string // path relative to the songs directory
	Path string // absolute path
}

// contentPatterns returns the song globs from "content", or the defaults.
func contentPatterns(d descriptor.Descriptor) ([]string, error) {
	switch v := d[keyContent].(type) {
	case nil:
		return defaultContent, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, ferrors.ValidationError(fmt.Sprintf("content[%d] must be a string", i)).
					WithContext("type", fmt.Sprintf("%T", item)).Build()
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, ferrors.ValidationError("content must be a string or a list of strings").
			WithContext("type", fmt.Sprintf("%T", v)).Build()
	}
}

// findSongs resolves patterns under <datadir>/songs for every datadir. Patterns
// keep their order; matches of one pattern are sorted by name. When the same
// relative name exists in several datadirs the earliest datadir wins, and a
// song matched by two patterns is only listed once.
func findSongs(datadirs, patterns []string) ([]Song, error) {
	seen := make(map[string]bool)
	var songs []Song
	for _, pattern := range patterns {
		byName := make(map[string]string)
		for _, dir := range datadirs {
			root := filepath.Join(dir, songsSubdir)
			matches, err := filepath.Glob(filepath.Join(root, pattern))
			if err != nil {
				return nil, ferrors.ValidationError("invalid content pattern").
					WithContext("pattern", pattern).WithCause(err).Build()
			}
			for _, m := range matches {
				rel, err := filepath.Rel(root, m)
				if err != nil {
					continue
				}
				if _, taken := byName[rel]; !taken {
					byName[rel] = m
				}
			}
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			songs = append(songs, Song{Name: filepath.ToSlash(name), Path: byName[name]})
		}
	}
	return songs, nil
}

// findTemplate looks name up under <datadir>/templates in search-path order.
func findTemplate(datadirs []string, name string, exists func(string) bool) (string, bool) {
	for _, dir := range datadirs {
		candidate := filepath.Join(dir, templatesSubdir, name)
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}
