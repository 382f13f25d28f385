package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskweave/internal/dag"
)

// Recorder writes the run.json and failure.json of CLI invocations.
type Recorder struct {
	Store *Store
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRecorder(store *Store) *Recorder { return &Recorder{Store: store} }

func NewRunID() string { return uuid.NewString() }

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Begin records a new running run. The most recent earlier run, if any,
// becomes its PreviousRunID.
func (r *Recorder) Begin(workflow string, concurrency int) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("store is required")
	}
	run := Run{
		RunID:       NewRunID(),
		Workflow:    workflow,
		StartTime:   r.now(),
		Concurrency: concurrency,
		Status:      RunStatusRunning,
	}
	prev, err := r.Store.LatestRunID()
	if err != nil {
		return Run{}, fmt.Errorf("list runs: %w", err)
	}
	if prev != "" {
		run.PreviousRunID = &prev
	}
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Outcome is what a run ended with. Report is nil when the run aborted
// before execution; Err is the error that aborted or cut it short.
type Outcome struct {
	GraphHash string
	Report    *dag.Report
	TraceHash string
	Err       error
}

// Finish completes run with its outcome and writes failure.json when it
// did not succeed.
func (r *Recorder) Finish(run Run, out Outcome) (Run, error) {
	if r == nil || r.Store == nil {
		return run, errors.New("store is required")
	}
	end := r.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	run.GraphHash = out.GraphHash
	run.TraceHash = out.TraceHash
	if out.Report != nil {
		s := out.Report.Summary()
		run.Counts = Counts(s)
	}

	var failure *Failure
	switch {
	case out.Err != nil && (errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded)) && out.Report != nil:
		run.Status = RunStatusCancelled
		f, _ := FailureFromError(out.Err)
		failure = &f
	case out.Err != nil:
		run.Status = RunStatusAborted
		f, _ := FailureFromError(out.Err)
		failure = &f
	case out.Report != nil && !out.Report.Succeeded():
		run.Status = RunStatusFailed
		if f, ok := FailureFromReport(out.Report); ok {
			failure = &f
		}
	default:
		run.Status = RunStatusSucceeded
	}

	if err := r.Store.SaveRun(run); err != nil {
		return run, err
	}
	if failure != nil {
		if err := r.Store.SaveFailure(run.RunID, *failure); err != nil {
			return run, err
		}
	}
	return run, nil
}
