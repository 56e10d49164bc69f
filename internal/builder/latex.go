package builder

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/songbuilder/internal/logfields"
)

// Auxiliary files removed by the clean step.
var cleanExtensions = []string{".aux", ".log", ".out", ".sxc", ".sxd", ".toc"}

// buildPDF runs the LaTeX engine on <basename>.tex. Shell escape is only
// enabled in unsafe mode.
func (b *SongbookBuilder) buildPDF(ctx context.Context) error {
	if err := b.runner.LookPath(b.latex); err != nil {
		return ferrors.NotFoundError("LaTeX engine not found").
			WithContext("command", b.latex).WithCause(err).Build()
	}
	src := b.artifact(".tex")
	if !fileExists(src) {
		return ferrors.NotFoundError("tex file missing; run the tex step first").
			WithContext("path", src).Build()
	}

	escape := "--no-shell-escape"
	if b.unsafe {
		escape = "--shell-escape"
	}
	cmd := Command{
		Dir:  b.outputDir,
		Name: b.latex,
		Args: []string{"-interaction=nonstopmode", "-halt-on-error", escape, filepath.Base(src)},
	}
	b.logger.Info("Running LaTeX", logfields.Command(cmd.String()))
	if _, err := b.runner.Run(ctx, cmd); err != nil {
		return ferrors.BuildError("LaTeX run failed").WithCause(err).
			WithContext("command", cmd.String()).Build()
	}
	return nil
}

// buildSbx turns every <basename>*.sxd index file into the matching .sbx.
func (b *SongbookBuilder) buildSbx(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(b.outputDir, b.basename+"*.sxd"))
	if err != nil {
		return ferrors.InternalError("glob index files").WithCause(err).Build()
	}
	if len(matches) == 0 {
		b.logger.Debug("No index files to process", logfields.Basename(b.basename))
		return nil
	}
	if err := b.runner.LookPath(b.indexer); err != nil {
		return ferrors.NotFoundError("index tool not found").
			WithContext("command", b.indexer).WithCause(err).Build()
	}
	for _, sxd := range matches {
		cmd := Command{Dir: b.outputDir, Name: b.indexer, Args: []string{filepath.Base(sxd)}}
		out, err := b.runner.Run(ctx, cmd)
		if err != nil {
			return ferrors.BuildError("index generation failed").WithCause(err).
				WithContext("path", sxd).Build()
		}
		sbx := strings.TrimSuffix(sxd, ".sxd") + ".sbx"
		if err := os.WriteFile(sbx, out, 0o600); err != nil {
			return ferrors.FileSystemError("write index").WithCause(err).
				WithContext("path", sbx).Build()
		}
		b.logger.Debug("Wrote index", logfields.Path(sbx))
	}
	return nil
}

// clean removes LaTeX auxiliary files, including per-index .sxd files.
func (b *SongbookBuilder) clean() error {
	targets := make([]string, 0, len(cleanExtensions))
	for _, ext := range cleanExtensions {
		targets = append(targets, b.artifact(ext))
	}
	indexes, err := filepath.Glob(filepath.Join(b.outputDir, b.basename+"_*.sxd"))
	if err != nil {
		return ferrors.InternalError("glob index files").WithCause(err).Build()
	}
	targets = append(targets, indexes...)

	for _, path := range targets {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ferrors.FileSystemError("remove auxiliary file").WithCause(err).
				WithContext("path", path).Build()
		}
	}
	return nil
}

// runCustom runs a step that is not built in as a shell command, with
// {basename} substituted. Such steps bypass every safeguard and therefore
// require unsafe mode.
func (b *SongbookBuilder) runCustom(ctx context.Context, step string) error {
	if strings.TrimSpace(step) == "" {
		return ferrors.ValidationError("empty step name").Build()
	}
	if !b.unsafe {
		return ferrors.ValidationError("custom command steps require unsafe mode").
			WithContext("step", step).Build()
	}
	line := strings.ReplaceAll(step, "{basename}", b.basename)
	cmd := Command{Dir: b.outputDir, Name: "sh", Args: []string{"-c", line}}
	b.logger.Info("Running custom step", logfields.Command(line))
	if _, err := b.runner.Run(ctx, cmd); err != nil {
		return ferrors.BuildError("custom step failed").WithCause(err).
			WithContext("command", line).Build()
	}
	return nil
}
