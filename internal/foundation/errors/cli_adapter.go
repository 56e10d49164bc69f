package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr}
}

// WithOutput redirects printed errors to w.
func (a *CLIErrorAdapter) WithOutput(w io.Writer) *CLIErrorAdapter {
	if w != nil {
		a.stderr = w
	}
	return a
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch GetCategory(err) {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 4
	case CategoryConfig:
		return 7
	case CategoryInternal:
		return 10
	case CategoryBuild, CategoryFileSystem:
		return 11
	case CategoryCanceled:
		return 130
	default:
		return 1
	}
}

// FormatError formats an error for display on stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok && !a.verbose {
		// The outer message is enough without -v; the chain can get long.
		if _, outer := err.(*ClassifiedError); outer {
			return fmt.Sprintf("Error: %s", classified.Message())
		}
	}
	return fmt.Sprintf("Error: %v", err)
}

// HandleError logs err, prints it and returns the exit code. It does not exit.
func (a *CLIErrorAdapter) HandleError(err error) int {
	if err == nil {
		return 0
	}
	a.logError(err)
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) logError(err error) {
	attrs := []slog.Attr{slog.String("category", string(GetCategory(err)))}
	level := slog.LevelError
	if GetSeverity(err) == SeverityWarning {
		level = slog.LevelWarn
	}
	if classified, ok := AsClassified(err); ok {
		attrs = append(attrs, slog.String("retry", string(classified.RetryStrategy())))
		if a.verbose {
			for k, v := range classified.Context() {
				attrs = append(attrs, slog.Any(k, v))
			}
		}
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	a.logger.LogAttrs(context.Background(), level, "Command failed", attrs...)
}
