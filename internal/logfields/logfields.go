package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStep       = "step"
	KeyStepIndex  = "step_index"
	KeyDescriptor = "descriptor"
	KeyBasename   = "basename"
	KeyDataDir    = "datadir"
	KeyEncoding   = "encoding"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func StepIndex(i int) slog.Attr       { return slog.Int(KeyStepIndex, i) }
func Descriptor(p string) slog.Attr   { return slog.String(KeyDescriptor, p) }
func Basename(b string) slog.Attr     { return slog.String(KeyBasename, b) }
func DataDir(dirs []string) slog.Attr { return slog.Any(KeyDataDir, dirs) }
func Encoding(e string) slog.Attr     { return slog.String(KeyEncoding, e) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
