package build

import "strings"

// StepName identifies a build step. The set of valid names belongs to the Builder.
type StepName string

// ParseSteps converts raw step identifiers, dropping blank entries.
func ParseSteps(raw []string) []StepName {
	out := make([]StepName, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, StepName(s))
		}
	}
	return out
}

// StepResult captures the outcome of one step.
type StepResult string

const (
	StepResultSuccess  StepResult = "success"
	StepResultFailed   StepResult = "failed"
	StepResultCanceled StepResult = "canceled"
	StepResultSkipped  StepResult = "skipped"
)
