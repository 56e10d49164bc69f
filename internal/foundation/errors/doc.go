// Package errors provides the classified error primitives used across songbuilder.
//
// A ClassifiedError carries a category (config, validation, build, ...), a severity
// and a retry hint next to the message and cause. Domain errors that are not built
// with this package (descriptor.LoadError, build.StepError, ...) can still take part
// in classification by implementing Categorized.
//
// Example usage:
//
//	err := errors.BuildError("latex run failed").
//		WithCause(cause).
//		WithContext("step", "pdf").
//		Build()
package errors
