package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode"

	"golang.org/x/text/encoding"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/songbuilder/internal/logfields"
)

var errEmptyDescriptor = errors.New("descriptor is empty")

// Loader reads descriptor files. The zero value is not usable; use NewLoader.
type Loader struct {
	baseDataDirs []string
	logger       *slog.Logger
	open         func(name string) (io.ReadCloser, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithBaseDataDirs adds search directories ahead of the descriptor's own
// datadir entries. Relative entries are resolved against the working directory.
func WithBaseDataDirs(dirs ...string) Option {
	return func(l *Loader) { l.baseDataDirs = append(l.baseDataDirs, dirs...) }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader reading from the local filesystem.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		logger: slog.Default(),
		open:   func(name string) (io.ReadCloser, error) { return os.Open(name) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the descriptor at path with a default Loader.
func Load(path string, opts ...Option) (Descriptor, error) {
	return NewLoader(opts...).Load(path)
}

// Load reads, decodes and parses the descriptor at path and resolves its
// datadir search path. Any failure yields a *LoadError and no descriptor.
func (l *Loader) Load(path string) (Descriptor, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	d, err := l.parseFile(path, nil)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if raw, declared := d[KeyEncoding]; declared {
		name, ok := raw.(string)
		if !ok {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("%s must be a string, got %T", KeyEncoding, raw)}
		}
		enc, err := LookupEncoding(name)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		l.logger.Debug("Re-reading descriptor with declared encoding",
			logfields.Descriptor(path), logfields.Encoding(name))
		// The first pass only bootstraps the encoding; nothing from it survives.
		d, err = l.parseFile(path, enc)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("with encoding %s: %w", name, err)}
		}
	}

	dirs, err := l.resolveDataDirs(d[KeyDataDir], filepath.Dir(absPath))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	d[KeyDataDir] = dirs

	l.logger.Debug("Descriptor loaded", logfields.Descriptor(path), logfields.DataDir(dirs))
	return d, nil
}

// parseFile performs one complete read+parse pass. A nil enc means best-effort UTF-8.
func (l *Loader) parseFile(path string, enc encoding.Encoding) (Descriptor, error) {
	f, err := l.open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader
	if enc == nil {
		r = bestEffortReader(f)
	} else {
		r = declaredReader(f, enc)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return parse(data)
}

// parse accepts the JSON form used by .sg files and, for anything that does not
// start with an object, YAML.
func parse(data []byte) (Descriptor, error) {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) == 0 {
		return nil, errEmptyDescriptor
	}

	var d Descriptor
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &d); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if d == nil {
		return nil, errEmptyDescriptor
	}
	return d, nil
}

// resolveDataDirs builds the ordered search path: base dirs, then the
// descriptor's datadir entries relative to baseDir, then baseDir itself.
func (l *Loader) resolveDataDirs(raw any, baseDir string) ([]string, error) {
	entries, err := dataDirEntries(raw)
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(l.baseDataDirs)+len(entries)+1)
	for _, dir := range l.baseDataDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve data directory %s: %w", dir, err)
		}
		dirs = append(dirs, abs)
	}
	for _, entry := range entries {
		if filepath.IsAbs(entry) {
			dirs = append(dirs, entry)
			continue
		}
		dirs = append(dirs, filepath.Join(baseDir, entry))
	}
	return append(dirs, baseDir), nil
}

func dataDirEntries(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", KeyDataDir, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a string or a list of strings, got %T", KeyDataDir, raw)
	}
}
