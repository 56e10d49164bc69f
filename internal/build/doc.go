// Package build drives a songbook build: it wraps a resolved descriptor and a
// step-execution Builder and runs an ordered list of named steps against them.
//
// Execution is sequential and fail-fast. The first step that returns an error
// stops the sequence; the error is returned as a *StepError naming the step, and
// no later step runs. Nothing is retried.
//
//	orch, err := build.New(desc, descriptor.Basename(path), builder.Factory())
//	if err != nil {
//		return err // *build.ConstructionError
//	}
//	if err := orch.Execute(ctx, build.ParseSteps(steps)); err != nil {
//		return err // *build.StepError
//	}
package build
