package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed: the plan ran to the end but some task is not COMPLETE.
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
	// RunStatusAborted: the run stopped on a graph, config or internal error.
	RunStatusAborted RunStatus = "aborted"
)

func (s RunStatus) valid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelled, RunStatusAborted:
		return true
	}
	return false
}

// Counts mirrors dag.Summary.
type Counts struct {
	Total     int `json:"total"`
	Executed  int `json:"executed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cascaded  int `json:"cascaded"`
	Cancelled int `json:"cancelled"`
	Pending   int `json:"pending"`
}

// Run is the persisted metadata of one invocation.
//
// GraphHash is empty for runs aborted before a plan existed.
// PreviousRunID is always serialized, as null for a first run.
type Run struct {
	RunID         string     `json:"run_id"`
	Workflow      string     `json:"workflow,omitempty"`
	GraphHash     string     `json:"graph_hash"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Concurrency   int        `json:"concurrency"`
	Status        RunStatus  `json:"status"`
	Counts        Counts     `json:"counts"`
	TraceHash     string     `json:"trace_hash,omitempty"`
	PreviousRunID *string    `json:"previous_run_id"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time is before start_time"))
	}
	if r.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency must be >= 0"))
	}
	if !r.Status.valid() {
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Status != RunStatusAborted && r.Status != RunStatusRunning && strings.TrimSpace(r.GraphHash) == "" {
		errs = append(errs, errors.New("graph_hash is required"))
	}
	if r.PreviousRunID != nil && strings.TrimSpace(*r.PreviousRunID) == "" {
		errs = append(errs, errors.New("previous_run_id must not be empty when provided"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassGraph     FailureClass = "graph"
	FailureClassConfig    FailureClass = "config"
	FailureClassExecution FailureClass = "execution"
	FailureClassSystem    FailureClass = "system"
)

// Failure is the recorded reason a run did not succeed.
//
// TaskID is the identity hash of the first failed task for execution
// failures and nil otherwise.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	TaskID       *string      `json:"task_id,omitempty"`
	TaskType     string       `json:"task_type,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassGraph, FailureClassConfig, FailureClassExecution, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.TaskID != nil && strings.TrimSpace(*f.TaskID) == "" {
		errs = append(errs, errors.New("task_id must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
