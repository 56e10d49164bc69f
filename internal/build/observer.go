package build

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/songbuilder/internal/logfields"
	"git.home.luguber.info/inful/songbuilder/internal/metrics"
)

// Observer receives callbacks around step execution and build completion.
type Observer interface {
	OnStepStart(index int, step StepName)
	OnStepComplete(index int, step StepName, d time.Duration, result StepResult)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStepStart(int, StepName)                               {}
func (NoopObserver) OnStepComplete(int, StepName, time.Duration, StepResult) {}
func (NoopObserver) OnBuildComplete(*Report)                                 {}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnStepStart(int, StepName) {}

func (r RecorderObserver) OnStepComplete(_ int, step StepName, d time.Duration, result StepResult) {
	if r.Recorder == nil {
		return
	}
	if result != StepResultCanceled {
		r.Recorder.ObserveStepDuration(string(step), d)
	}
	r.Recorder.IncStepResult(string(step), resultLabel(result))
}

func (r RecorderObserver) OnBuildComplete(report *Report) {
	if r.Recorder == nil {
		return
	}
	for _, s := range report.Steps {
		if s.Result == StepResultSkipped {
			r.Recorder.IncStepResult(string(s.Name), metrics.ResultSkipped)
		}
	}
	r.Recorder.ObserveBuildDuration(report.Duration())
	r.Recorder.IncBuildOutcome(string(report.Outcome))
}

func resultLabel(r StepResult) metrics.ResultLabel {
	switch r {
	case StepResultSuccess:
		return metrics.ResultSuccess
	case StepResultCanceled:
		return metrics.ResultCanceled
	case StepResultSkipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFailed
	}
}

// LogObserver writes step progress to a structured logger.
type LogObserver struct{ Logger *slog.Logger }

func (l LogObserver) OnStepStart(index int, step StepName) {
	l.Logger.Info("Running step", logfields.Step(string(step)), logfields.StepIndex(index))
}

func (l LogObserver) OnStepComplete(index int, step StepName, d time.Duration, result StepResult) {
	level := slog.LevelDebug
	if result != StepResultSuccess {
		level = slog.LevelWarn
	}
	l.Logger.Log(context.Background(), level, "Step finished",
		logfields.Step(string(step)),
		logfields.StepIndex(index),
		logfields.Outcome(string(result)),
		logfields.DurationMS(float64(d.Microseconds())/1000))
}

func (l LogObserver) OnBuildComplete(report *Report) {
	attrs := []any{
		logfields.BuildID(report.BuildID),
		logfields.Outcome(string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Microseconds()) / 1000),
	}
	if report.FailedStep != "" {
		attrs = append(attrs, logfields.Step(string(report.FailedStep)))
		l.Logger.Error("Build failed", attrs...)
		return
	}
	l.Logger.Info("Build completed", attrs...)
}
