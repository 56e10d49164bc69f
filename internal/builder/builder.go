// Package builder is the songbook step library driven by package build. It
// validates a resolved descriptor and implements the named steps that turn it
// into a typeset document: tex, pdf, sbx and clean. Any other step name is run
// as a shell command, which is only allowed in unsafe mode.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/songbuilder/internal/build"
	"git.home.luguber.info/inful/songbuilder/internal/descriptor"
	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/songbuilder/internal/logfields"
)

// Built-in step names.
const (
	StepTex   build.StepName = "tex"
	StepPDF   build.StepName = "pdf"
	StepSbx   build.StepName = "sbx"
	StepClean build.StepName = "clean"
)

// DefaultSteps is the sequence used when the caller does not choose one. The
// LaTeX pass runs twice so the indexes built by sbx make it into the output.
var DefaultSteps = []build.StepName{StepTex, StepPDF, StepSbx, StepPDF, StepClean}

// SongbookBuilder runs steps for one descriptor. Artifacts are written to the
// output directory and named after the basename.
type SongbookBuilder struct {
	desc      descriptor.Descriptor
	basename  string
	outputDir string
	latex     string
	indexer   string
	runner    CommandRunner
	logger    *slog.Logger
	unsafe    bool
}

// Option configures a SongbookBuilder.
type Option func(*SongbookBuilder)

// WithOutputDir sets where artifacts are written. Defaults to the working directory.
func WithOutputDir(dir string) Option { return func(b *SongbookBuilder) { b.outputDir = dir } }

// WithLaTeX sets the LaTeX engine used by the pdf step.
func WithLaTeX(cmd string) Option { return func(b *SongbookBuilder) { b.latex = cmd } }

// WithIndexer sets the command used by the sbx step.
func WithIndexer(cmd string) Option { return func(b *SongbookBuilder) { b.indexer = cmd } }

// WithRunner replaces the external command runner.
func WithRunner(r CommandRunner) Option { return func(b *SongbookBuilder) { b.runner = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *SongbookBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New validates d and returns a builder for it. The unsafe flag starts off.
func New(d descriptor.Descriptor, basename string, opts ...Option) (*SongbookBuilder, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	if basename == "" {
		return nil, ferrors.ValidationError("empty basename").Build()
	}
	b := &SongbookBuilder{
		desc:      d,
		basename:  basename,
		outputDir: ".",
		latex:     "lualatex",
		indexer:   "songbook-makeindex",
		runner:    ExecRunner{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	abs, err := filepath.Abs(b.outputDir)
	if err != nil {
		return nil, ferrors.FileSystemError("resolve output directory").WithCause(err).Build()
	}
	b.outputDir = abs
	return b, nil
}

// Factory adapts New to build.Factory.
func Factory(opts ...Option) build.Factory {
	return func(d descriptor.Descriptor, basename string) (build.Builder, error) {
		b, err := New(d, basename, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (b *SongbookBuilder) SetUnsafe(unsafe bool) { b.unsafe = unsafe }
func (b *SongbookBuilder) Unsafe() bool          { return b.unsafe }

// OutputDir is the absolute directory artifacts are written to.
func (b *SongbookBuilder) OutputDir() string { return b.outputDir }

// artifact returns the output path for basename+ext.
func (b *SongbookBuilder) artifact(ext string) string {
	return filepath.Join(b.outputDir, b.basename+ext)
}

// RunStep executes a single named step.
func (b *SongbookBuilder) RunStep(ctx context.Context, step build.StepName) error {
	b.logger.Debug("Dispatching step", logfields.Step(string(step)), logfields.Basename(b.basename))
	switch step {
	case StepTex:
		return b.buildTex()
	case StepPDF:
		return b.buildPDF(ctx)
	case StepSbx:
		return b.buildSbx(ctx)
	case StepClean:
		return b.clean()
	default:
		return b.runCustom(ctx, string(step))
	}
}

// Validate checks the descriptor shape the steps rely on.
func Validate(d descriptor.Descriptor) error {
	if d == nil {
		return ferrors.ValidationError("descriptor is nil").Build()
	}
	dirs, ok := d[descriptor.KeyDataDir].([]string)
	if !ok {
		return ferrors.ValidationError("datadir has not been resolved").
			WithContext("type", fmt.Sprintf("%T", d[descriptor.KeyDataDir])).Build()
	}
	if len(dirs) == 0 {
		return ferrors.ValidationError("datadir is empty").Build()
	}
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			return ferrors.ValidationError("datadir entry is not absolute").WithContext("datadir", dir).Build()
		}
	}
	for _, key := range []string{keyTitle, keyAuthor, keyLang, keyTemplate} {
		if v, present := d[key]; present {
			if _, ok := v.(string); !ok {
				return ferrors.ValidationError(key+" must be a string").
					WithContext("type", fmt.Sprintf("%T", v)).Build()
			}
		}
	}
	if _, err := contentPatterns(d); err != nil {
		return err
	}
	return nil
}
