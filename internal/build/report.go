package build

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the final state of a step sequence.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// StepRecord is the report entry for one requested step.
type StepRecord struct {
	Index    int
	Name     StepName
	Result   StepResult
	Duration time.Duration
	Error    string `json:",omitempty"`
}

// Report summarizes one Execute call. Every requested step has a record; steps
// after a failure are recorded as skipped.
type Report struct {
	BuildID    string
	Basename   string
	Unsafe     bool
	Start      time.Time
	End        time.Time
	Steps      []StepRecord
	Outcome    Outcome
	FailedStep StepName `json:",omitempty"`
}

func newReport(basename string, unsafe bool, planned int) *Report {
	return &Report{
		BuildID:  uuid.NewString(),
		Basename: basename,
		Unsafe:   unsafe,
		Start:    time.Now(),
		Steps:    make([]StepRecord, 0, planned),
	}
}

// Duration is the wall time of the whole sequence.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Executed counts steps that actually ran, successfully or not.
func (r *Report) Executed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Result == StepResultSuccess || s.Result == StepResultFailed {
			n++
		}
	}
	return n
}

func (r *Report) record(index int, step StepName, result StepResult, d time.Duration, err error) {
	rec := StepRecord{Index: index, Name: step, Result: result, Duration: d}
	if err != nil {
		rec.Error = err.Error()
	}
	r.Steps = append(r.Steps, rec)
}

func (r *Report) skip(steps []StepName, from int) {
	for i, step := range steps {
		r.record(from+i, step, StepResultSkipped, 0, nil)
	}
}

func (r *Report) finish(outcome Outcome, failed StepName) {
	r.Outcome = outcome
	r.FailedStep = failed
	r.End = time.Now()
}
