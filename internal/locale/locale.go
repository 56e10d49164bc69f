// Package locale inspects the process locale. Songbooks render fine without a
// usable locale, so problems are reported and never treated as fatal.
package locale

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
)

// Variables consulted in POSIX precedence order.
var envKeys = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// Info describes the locale selected from the environment.
type Info struct {
	Source string // environment variable the value came from
	Raw    string
	Tag    language.Tag
}

// Detect picks the first non-empty locale variable and parses it into a BCP 47
// tag. "C" and "POSIX" map to language.Und. The returned error describes an
// unparsable or missing value; Info is still filled with what was found.
func Detect(getenv func(string) string) (Info, error) {
	for _, key := range envKeys {
		raw := getenv(key)
		if raw == "" {
			continue
		}
		info := Info{Source: key, Raw: raw}
		tag, err := Parse(raw)
		if err != nil {
			return info, fmt.Errorf("%s=%q: %w", key, raw, err)
		}
		info.Tag = tag
		return info, nil
	}
	return Info{Tag: language.Und}, fmt.Errorf("no locale set in %s", strings.Join(envKeys, ", "))
}

// Parse converts a POSIX locale name such as "fr_FR.UTF-8@euro" into a tag.
func Parse(raw string) (language.Tag, error) {
	name := raw
	if i := strings.IndexAny(name, ".@"); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "C", "POSIX":
		return language.Und, nil
	case "":
		return language.Und, fmt.Errorf("empty locale name")
	}
	return language.Parse(strings.ReplaceAll(name, "_", "-"))
}

// Check logs the detected locale, or a warning when it cannot be determined.
func Check(logger *slog.Logger, getenv func(string) string) Info {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := Detect(getenv)
	if err != nil {
		logger.Warn("Locale could not be determined; continuing", "error", err)
		return info
	}
	logger.Debug("Locale detected", "source", info.Source, "locale", info.Tag.String())
	return info
}
