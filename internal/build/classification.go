package build

import (
	"context"
	"errors"
)

// stepOutcome is the normalized result of one step.
type stepOutcome struct {
	Result StepResult
	Error  *StepError
}

// classifyStepResult turns a raw step error into a *StepError positioned at
// index. Errors caused by the build context ending are reported as canceled.
func classifyStepResult(ctx context.Context, index int, step StepName, err error) stepOutcome {
	if err == nil {
		return stepOutcome{Result: StepResultSuccess}
	}

	var se *StepError
	if errors.As(err, &se) && se.Step == step {
		positioned := *se
		positioned.Index = index
		return stepOutcome{Result: resultFromKind(positioned.Kind), Error: &positioned}
	}

	kind := StepErrorFatal
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		kind = StepErrorCanceled
	}
	se = &StepError{Kind: kind, Step: step, Index: index, Err: err}
	return stepOutcome{Result: resultFromKind(kind), Error: se}
}

func resultFromKind(k StepErrorKind) StepResult {
	if k == StepErrorCanceled {
		return StepResultCanceled
	}
	return StepResultFailed
}
