package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"taskweave/internal/core"
	"taskweave/internal/dag"
	"taskweave/internal/store"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	r := NewRecorder(s)
	r.Now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return r
}

// runPlan executes a -> b where a fails when failA is set.
func runPlan(t *testing.T, failA bool) (*dag.Plan, *dag.Report) {
	t.Helper()
	def := &core.Definition{
		Type:    "N",
		Params:  []core.ParamSpec{{Name: "name", Kind: core.KindString}},
		Inputs:  []core.SlotSpec{{Name: "in", Optional: true}},
		Outputs: []core.SlotSpec{{Name: "out"}},
		Run: func(_ context.Context, _ core.Inputs, p core.Params) (core.Outputs, error) {
			if failA && p.Text("name") == "a" {
				return nil, errors.New("exit status 1")
			}
			return core.Outputs{"out": core.String(p.Text("name"))}, nil
		},
	}
	g := dag.NewGraph()
	a, err := g.New(def, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := g.New(def, map[string]any{"name": "b"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := g.Bind(b, "in", a.Out("out")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	p, err := g.Validate(b)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	mem, err := store.NewMemory(0)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	e, err := dag.NewExecutor(mem)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	report, err := e.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return p, report
}

func TestRecorder_SuccessfulRun(t *testing.T) {
	r := newRecorder(t)
	run, err := r.Begin("wf.yaml", 2)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if run.Status != RunStatusRunning || run.PreviousRunID != nil {
		t.Fatalf("unexpected begin state: %+v", run)
	}

	p, report := runPlan(t, false)
	run, err = r.Finish(run, Outcome{GraphHash: p.Hash(), Report: report, TraceHash: "th"})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	loaded, err := r.Store.LoadRun(run.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Status != RunStatusSucceeded || loaded.Counts.Executed != 2 || loaded.Counts.Total != 2 {
		t.Fatalf("unexpected run: %+v", loaded)
	}
	if loaded.EndTime == nil || !loaded.EndTime.After(loaded.StartTime) {
		t.Fatalf("end time not recorded: %+v", loaded)
	}
	if _, err := r.Store.LoadFailure(run.RunID); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("successful run must not have a failure record: %v", err)
	}

	next, err := r.Begin("wf.yaml", 1)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if next.PreviousRunID == nil || *next.PreviousRunID != run.RunID {
		t.Fatalf("expected previous run %s, got %v", run.RunID, next.PreviousRunID)
	}
}

func TestRecorder_TaskFailureRecordsFirstOwnFailure(t *testing.T) {
	r := newRecorder(t)
	run, err := r.Begin("", 1)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	p, report := runPlan(t, true)
	run, err = r.Finish(run, Outcome{GraphHash: p.Hash(), Report: report})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if run.Status != RunStatusFailed || run.Counts.Failed != 1 || run.Counts.Cascaded != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	f, err := r.Store.LoadFailure(run.RunID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	failed := report.Failed()
	if f.FailureClass != FailureClassExecution || f.ErrorCode != "TaskExecution" || f.TaskType != "N" {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if f.TaskID == nil || *f.TaskID != failed[0].Hash() {
		t.Fatalf("failure must name the failing task %s, got %v", failed[0].Hash(), f.TaskID)
	}
}

func TestRecorder_AbortedRun(t *testing.T) {
	r := newRecorder(t)
	run, err := r.Begin("", 1)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cycle := &dag.CycleError{Path: []string{"A|", "A|"}}
	run, err = r.Finish(run, Outcome{Err: cycle})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if run.Status != RunStatusAborted {
		t.Fatalf("expected aborted, got %s", run.Status)
	}
	f, err := r.Store.LoadFailure(run.RunID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.FailureClass != FailureClassGraph || f.ErrorCode != "CycleDetected" || f.TaskID != nil {
		t.Fatalf("unexpected failure: %+v", f)
	}
}

func TestFailureFromError(t *testing.T) {
	id := core.IdentityFromKey("N|")
	cases := []struct {
		err   error
		class FailureClass
		code  string
	}{
		{ConfigFailure("BadFlag", errors.New("--concurrency must be >= 1")), FailureClassConfig, "BadFlag"},
		{fmt.Errorf("build: %w", core.Errorf(core.ErrUnboundRequiredInput, "Merge.in_data2")), FailureClassGraph, "UnboundRequiredInput"},
		{core.Errorf(core.ErrTypeMismatch, "x"), FailureClassGraph, "TypeMismatch"},
		{core.NewTaskError(id, errors.New("boom")), FailureClassExecution, "TaskExecution"},
		{&core.TaskError{Identity: id, Kind: core.ErrUnresolvable}, FailureClassExecution, "Unresolvable"},
		{&core.TaskError{Identity: id, Kind: dag.ErrStore, Cause: errors.New("disk full")}, FailureClassExecution, "StoreFailure"},
		{fmt.Errorf("execution cancelled: %w", context.Canceled), FailureClassSystem, "Cancelled"},
		{errors.New("???"), FailureClassSystem, "InternalError"},
	}
	for _, tc := range cases {
		f, err := FailureFromError(tc.err)
		if err != nil {
			t.Fatalf("%v: %v", tc.err, err)
		}
		if f.FailureClass != tc.class || f.ErrorCode != tc.code {
			t.Fatalf("%v: got %s/%s want %s/%s", tc.err, f.FailureClass, f.ErrorCode, tc.class, tc.code)
		}
		if err := f.Validate(); err != nil {
			t.Fatalf("%v: invalid failure: %v", tc.err, err)
		}
	}
	if _, err := FailureFromError(nil); err == nil {
		t.Fatalf("expected error for nil")
	}
}
