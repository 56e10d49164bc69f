package build

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
)

// StepErrorKind classifies why a step sequence stopped.
type StepErrorKind string

const (
	StepErrorFatal    StepErrorKind = "fatal"    // The step itself failed.
	StepErrorCanceled StepErrorKind = "canceled" // The context was done before the step ran.
)

// StepError reports the step that halted a build.
type StepError struct {
	Kind  StepErrorKind
	Step  StepName
	Index int // position of Step in the requested sequence
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %s (#%d): %v", e.Kind, e.Step, e.Index+1, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Category() ferrors.ErrorCategory {
	if e.Kind == StepErrorCanceled {
		return ferrors.CategoryCanceled
	}
	return ferrors.CategoryBuild
}

// ConstructionError reports a descriptor the Builder refused to accept.
type ConstructionError struct {
	Basename string
	Err      error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct builder for %s: %v", e.Basename, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Category reports validation unless the builder classified the failure itself.
func (e *ConstructionError) Category() ferrors.ErrorCategory {
	if ce, ok := ferrors.AsClassified(e.Err); ok {
		return ce.Category()
	}
	return ferrors.CategoryValidation
}
