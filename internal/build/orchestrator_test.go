package build

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/songbuilder/internal/descriptor"
	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/songbuilder/internal/metrics"
)

// fakeBuilder writes <outDir>/<basename>.<step> for every step it runs, unless
// the step is configured to fail.
type fakeBuilder struct {
	outDir   string
	basename string
	fail     map[StepName]error
	ran      []StepName
	unsafe   bool
	onRun    func(StepName)
}

func (f *fakeBuilder) RunStep(_ context.Context, step StepName) error {
	f.ran = append(f.ran, step)
	if f.onRun != nil {
		f.onRun(step)
	}
	if err := f.fail[step]; err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.outDir, f.basename+"."+string(step)), []byte("ok"), 0o600)
}

func (f *fakeBuilder) SetUnsafe(u bool) { f.unsafe = u }
func (f *fakeBuilder) Unsafe() bool     { return f.unsafe }

func factoryFor(fb *fakeBuilder) Factory {
	return func(_ descriptor.Descriptor, basename string) (Builder, error) {
		fb.basename = basename
		return fb, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testDescriptor(dir string) descriptor.Descriptor {
	return descriptor.Descriptor{descriptor.KeyDataDir: []string{dir}, "title": "Test"}
}

func TestNew_SetsUnsafe(t *testing.T) {
	fb := &fakeBuilder{outDir: t.TempDir()}

	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.True(t, fb.unsafe)
	assert.True(t, orch.Unsafe())
	assert.Equal(t, "book", orch.Basename())
	assert.Equal(t, "Test", orch.Descriptor()["title"])
	assert.Nil(t, orch.Report())
}

func TestNew_ConstructionError(t *testing.T) {
	cause := ferrors.ValidationError("datadir must not be empty").Build()
	factory := func(descriptor.Descriptor, string) (Builder, error) { return nil, cause }

	orch, err := New(descriptor.Descriptor{}, "book", factory)

	require.Error(t, err)
	assert.Nil(t, orch)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "book", ce.Basename)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ferrors.CategoryValidation, ferrors.GetCategory(err))
}

func TestNew_NilFactoryOrBuilder(t *testing.T) {
	_, err := New(descriptor.Descriptor{}, "book", nil)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)

	_, err = New(descriptor.Descriptor{}, "book", func(descriptor.Descriptor, string) (Builder, error) { return nil, nil })
	require.ErrorAs(t, err, &ce)
}

func TestExecute_AllStepsInOrder(t *testing.T) {
	fb := &fakeBuilder{outDir: t.TempDir()}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, orch.Execute(context.Background(), ParseSteps([]string{"tex", "pdf", "sbx", "pdf", "clean"})))

	assert.Equal(t, []StepName{"tex", "pdf", "sbx", "pdf", "clean"}, fb.ran)
	report := orch.Report()
	require.NotNil(t, report)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Empty(t, report.FailedStep)
	assert.Len(t, report.Steps, 5)
	assert.Equal(t, 5, report.Executed())
	assert.True(t, report.Unsafe)
	assert.NotEmpty(t, report.BuildID)
	assert.False(t, report.End.Before(report.Start))
}

func TestExecute_FailFast(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("latex exploded")
	fb := &fakeBuilder{outDir: dir, fail: map[StepName]error{"B": boom}}
	orch, err := New(testDescriptor(dir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = orch.Execute(context.Background(), []StepName{"A", "B", "C"})

	require.Error(t, err)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepName("B"), se.Step)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, StepErrorFatal, se.Kind)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ferrors.CategoryBuild, ferrors.GetCategory(err))

	assert.Equal(t, []StepName{"A", "B"}, fb.ran)
	assert.FileExists(t, filepath.Join(dir, "book.A"))
	assert.NoFileExists(t, filepath.Join(dir, "book.C"), "step after the failure must never run")

	report := orch.Report()
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StepName("B"), report.FailedStep)
	require.Len(t, report.Steps, 3)
	assert.Equal(t, StepResultSuccess, report.Steps[0].Result)
	assert.Equal(t, StepResultFailed, report.Steps[1].Result)
	assert.Contains(t, report.Steps[1].Error, "latex exploded")
	assert.Equal(t, StepResultSkipped, report.Steps[2].Result)
}

func TestExecute_EmptySequence(t *testing.T) {
	fb := &fakeBuilder{outDir: t.TempDir()}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, orch.Execute(context.Background(), nil))
	assert.Empty(t, fb.ran)
	assert.Equal(t, OutcomeSuccess, orch.Report().Outcome)
}

func TestExecute_CanceledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fb := &fakeBuilder{outDir: t.TempDir()}
	fb.onRun = func(step StepName) {
		if step == "tex" {
			cancel()
		}
	}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = orch.Execute(ctx, []StepName{"tex", "pdf", "clean"})

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepErrorCanceled, se.Kind)
	assert.Equal(t, StepName("pdf"), se.Step)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []StepName{"tex"}, fb.ran)
	assert.Equal(t, OutcomeCanceled, orch.Report().Outcome)
	assert.Equal(t, ferrors.CategoryCanceled, ferrors.GetCategory(err))
}

func TestExecute_StepReturningStepError(t *testing.T) {
	inner := &StepError{Kind: StepErrorFatal, Step: "pdf", Index: 7, Err: errors.New("missing font")}
	fb := &fakeBuilder{outDir: t.TempDir(), fail: map[StepName]error{"pdf": inner}}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = orch.Execute(context.Background(), []StepName{"tex", "pdf"})

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.NotSame(t, inner, se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, 7, inner.Index, "the builder's error is left untouched")
	assert.Equal(t, inner.Err, se.Err)
	assert.Equal(t, StepErrorFatal, se.Kind)
}

func TestExecute_RepeatedCallsReplaceReport(t *testing.T) {
	fb := &fakeBuilder{outDir: t.TempDir()}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, orch.Execute(context.Background(), []StepName{"tex"}))
	first := orch.Report()
	require.NoError(t, orch.Execute(context.Background(), []StepName{"pdf", "clean"}))

	assert.NotEqual(t, first.BuildID, orch.Report().BuildID)
	assert.Len(t, orch.Report().Steps, 2)
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) OnStepStart(_ int, s StepName) {
	r.events = append(r.events, "start:"+string(s))
}

func (r *recordingObserver) OnStepComplete(_ int, s StepName, _ time.Duration, res StepResult) {
	r.events = append(r.events, "done:"+string(s)+":"+string(res))
}

func (r *recordingObserver) OnBuildComplete(rep *Report) {
	r.events = append(r.events, "build:"+string(rep.Outcome))
}

func TestExecute_ObserverSequence(t *testing.T) {
	obs := &recordingObserver{}
	fb := &fakeBuilder{outDir: t.TempDir(), fail: map[StepName]error{"pdf": errors.New("x")}}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithObserver(obs), WithLogger(quietLogger()))
	require.NoError(t, err)

	_ = orch.Execute(context.Background(), []StepName{"tex", "pdf", "clean"})

	assert.Equal(t, []string{
		"start:tex", "done:tex:success",
		"start:pdf", "done:pdf:failed",
		"build:failed",
	}, obs.events)
}

type countingRecorder struct {
	metrics.NoopRecorder
	results  map[string]metrics.ResultLabel
	outcomes []string
}

func (c *countingRecorder) IncStepResult(step string, r metrics.ResultLabel) { c.results[step] = r }
func (c *countingRecorder) IncBuildOutcome(o string)                         { c.outcomes = append(c.outcomes, o) }

func TestExecute_RecorderObserver(t *testing.T) {
	rec := &countingRecorder{results: map[string]metrics.ResultLabel{}}
	fb := &fakeBuilder{outDir: t.TempDir(), fail: map[StepName]error{"pdf": errors.New("x")}}
	orch, err := New(testDescriptor(fb.outDir), "book", factoryFor(fb), WithRecorder(rec), WithLogger(quietLogger()))
	require.NoError(t, err)

	_ = orch.Execute(context.Background(), []StepName{"tex", "pdf", "clean"})

	assert.Equal(t, map[string]metrics.ResultLabel{
		"tex":   metrics.ResultSuccess,
		"pdf":   metrics.ResultFailed,
		"clean": metrics.ResultSkipped,
	}, rec.results)
	assert.Equal(t, []string{"failed"}, rec.outcomes)
}

func TestParseSteps(t *testing.T) {
	assert.Equal(t, []StepName{"tex", "pdf"}, ParseSteps([]string{" tex ", "", "pdf", "  "}))
	assert.Empty(t, ParseSteps(nil))
}
