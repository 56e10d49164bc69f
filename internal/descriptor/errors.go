package descriptor

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
)

// LoadError reports a descriptor that could not be opened, decoded or parsed,
// or whose encoding/datadir keys have an unusable value.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load songbook %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Category classifies load failures as configuration errors for the CLI.
func (e *LoadError) Category() ferrors.ErrorCategory { return ferrors.CategoryConfig }
