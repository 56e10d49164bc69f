package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/songbuilder/internal/descriptor"
	"git.home.luguber.info/inful/songbuilder/internal/logfields"
	"git.home.luguber.info/inful/songbuilder/internal/metrics"
)

// Builder executes individual steps against the descriptor it was built from.
// It is supplied by a songbook builder library (see package builder).
type Builder interface {
	RunStep(ctx context.Context, step StepName) error
	SetUnsafe(unsafe bool)
	Unsafe() bool
}

// Factory validates a resolved descriptor and returns a Builder for it.
type Factory func(d descriptor.Descriptor, basename string) (Builder, error)

// Orchestrator owns one resolved descriptor and runs step sequences against it.
// It is not safe for concurrent use.
type Orchestrator struct {
	desc      descriptor.Descriptor
	basename  string
	builder   Builder
	observers []Observer
	logger    *slog.Logger
	report    *Report
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder reports step and build metrics to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.observers = append(o.observers, RecorderObserver{Recorder: r})
		}
	}
}

// WithObserver adds an observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger; step progress is logged through it.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New constructs a Builder through factory and wraps it. Construction failures
// are returned as *ConstructionError and leave nothing to execute.
//
// The builder's unsafe flag is always switched on: steps run without the
// builder's sandboxing safeguards.
func New(d descriptor.Descriptor, basename string, factory Factory, opts ...Option) (*Orchestrator, error) {
	if factory == nil {
		return nil, &ConstructionError{Basename: basename, Err: errors.New("no builder factory")}
	}
	b, err := factory(d, basename)
	if err != nil {
		return nil, &ConstructionError{Basename: basename, Err: err}
	}
	if b == nil {
		return nil, &ConstructionError{Basename: basename, Err: errors.New("factory returned no builder")}
	}
	b.SetUnsafe(true)

	o := &Orchestrator{
		desc:     d,
		basename: basename,
		builder:  b,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.observers = append(o.observers, LogObserver{Logger: o.logger})
	return o, nil
}

func (o *Orchestrator) Descriptor() descriptor.Descriptor { return o.desc }
func (o *Orchestrator) Basename() string                  { return o.basename }
func (o *Orchestrator) Unsafe() bool                      { return o.builder.Unsafe() }

// Report returns the report of the most recent Execute call, or nil.
func (o *Orchestrator) Report() *Report { return o.report }

// Execute runs steps in order. It stops at the first failing step and returns a
// *StepError for it; steps after it are never run.
func (o *Orchestrator) Execute(ctx context.Context, steps []StepName) error {
	report := newReport(o.basename, o.builder.Unsafe(), len(steps))
	o.report = report
	o.logger.Info("Starting songbook build",
		logfields.BuildID(report.BuildID),
		logfields.Basename(o.basename),
		slog.Int("steps", len(steps)))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			se := &StepError{Kind: StepErrorCanceled, Step: step, Index: i, Err: err}
			report.record(i, step, StepResultCanceled, 0, se)
			o.stepComplete(i, step, 0, StepResultCanceled)
			return o.abort(report, steps, i, se)
		}

		o.stepStart(i, step)
		t0 := time.Now()
		err := o.builder.RunStep(ctx, step)
		dur := time.Since(t0)

		out := classifyStepResult(ctx, i, step, err)
		if out.Error == nil {
			report.record(i, step, out.Result, dur, nil)
			o.stepComplete(i, step, dur, out.Result)
			continue
		}
		report.record(i, step, out.Result, dur, out.Error)
		o.stepComplete(i, step, dur, out.Result)
		return o.abort(report, steps, i, out.Error)
	}

	report.finish(OutcomeSuccess, "")
	o.buildComplete(report)
	return nil
}

func (o *Orchestrator) abort(report *Report, steps []StepName, failedAt int, se *StepError) error {
	report.skip(steps[failedAt+1:], failedAt+1)
	outcome := OutcomeFailed
	if se.Kind == StepErrorCanceled {
		outcome = OutcomeCanceled
	}
	report.finish(outcome, se.Step)
	o.buildComplete(report)
	return se
}

func (o *Orchestrator) stepStart(i int, step StepName) {
	for _, obs := range o.observers {
		obs.OnStepStart(i, step)
	}
}

func (o *Orchestrator) stepComplete(i int, step StepName, d time.Duration, r StepResult) {
	for _, obs := range o.observers {
		obs.OnStepComplete(i, step, d, r)
	}
}

func (o *Orchestrator) buildComplete(report *Report) {
	for _, obs := range o.observers {
		obs.OnBuildComplete(report)
	}
}
