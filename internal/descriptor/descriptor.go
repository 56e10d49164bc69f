// Package descriptor loads songbook descriptor files (.sg) and resolves their
// data-directory search path.
//
// A descriptor is read twice when it declares its own text encoding: the first,
// best-effort UTF-8 pass only exists to discover the `encoding` key, and the
// second pass, decoded with that encoding, is the one returned. After loading,
// `datadir` always holds absolute paths in priority order with the descriptor's
// own directory last.
package descriptor

import (
	"path/filepath"
	"strings"
)

// Well-known descriptor keys.
const (
	KeyDataDir  = "datadir"
	KeyEncoding = "encoding"
)

// Descriptor is the resolved, in-memory form of a songbook file. Keys other than
// datadir are passed through exactly as parsed.
type Descriptor map[string]any

// DataDirs returns the resolved search path. It is only meaningful on a
// descriptor returned by Load.
func (d Descriptor) DataDirs() []string {
	dirs, _ := d[KeyDataDir].([]string)
	return dirs
}

// Encoding returns the declared text encoding, if any.
func (d Descriptor) Encoding() (string, bool) {
	return d.String(KeyEncoding)
}

// String returns the value under key when it is a string.
func (d Descriptor) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Basename is the descriptor's file name without its final extension. Build
// artifacts are named after it.
func Basename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
