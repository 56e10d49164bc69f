package descriptor

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// bestEffortReader decodes r as UTF-8, honouring a UTF-8 or UTF-16 byte order
// mark. Ill-formed bytes become U+FFFD instead of failing the read.
func bestEffortReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// declaredReader decodes r with enc. A byte order mark still takes precedence.
func declaredReader(r io.Reader, enc encoding.Encoding) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
}

// LookupEncoding resolves an encoding name as written in a descriptor. IANA
// names and aliases are tried first, then WHATWG labels, then the spelling
// variants common in songbook files ("latin-1", "utf_8", "cp1252").
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty encoding name")
	}
	for _, candidate := range encodingCandidates(name) {
		if enc, err := ianaindex.IANA.Encoding(candidate); err == nil && enc != nil {
			return enc, nil
		}
		if enc, err := htmlindex.Get(candidate); err == nil {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

func encodingCandidates(name string) []string {
	out := []string{name}
	squashed := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(name))
	if squashed != name {
		out = append(out, squashed)
	}
	if rest, ok := strings.CutPrefix(squashed, "cp"); ok && rest != "" {
		out = append(out, "windows-"+rest, "ibm"+rest)
	}
	return out
}
