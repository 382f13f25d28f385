package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveAndLoadRun_IncludesNullablePreviousRunID(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	run := Run{
		RunID:     "run-123",
		GraphHash: "gh-abc",
		StartTime: time.Unix(1, 2).UTC(),
		Status:    RunStatusRunning,
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "runs", "run-123", "run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"previous_run_id\": null") {
		t.Fatalf("expected previous_run_id to be null; got: %s", string(data))
	}

	loaded, err := store.LoadRun("run-123")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.RunID != run.RunID || loaded.GraphHash != run.GraphHash || !loaded.StartTime.Equal(run.StartTime) {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
	if loaded.PreviousRunID != nil {
		t.Fatalf("expected PreviousRunID nil; got %v", *loaded.PreviousRunID)
	}
}

func TestStore_RejectsInvalidRecords(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	now := time.Now().UTC()
	bad := []Run{
		{GraphHash: "g", StartTime: now, Status: RunStatusRunning},
		{RunID: "r", GraphHash: "g", Status: RunStatusRunning},
		{RunID: "r", GraphHash: "g", StartTime: now, Status: "weird"},
		{RunID: "r", StartTime: now, Status: RunStatusSucceeded},
		{RunID: "../escape", GraphHash: "g", StartTime: now, Status: RunStatusRunning},
	}
	for i, r := range bad {
		if err := store.SaveRun(r); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, r)
		}
	}
	if err := store.SaveFailure("r", Failure{FailureClass: "nope", ErrorCode: "x", ErrorMessage: "y"}); err == nil {
		t.Fatalf("expected error for unknown failure class")
	}
	if _, err := NewStore(" "); err == nil {
		t.Fatalf("expected error for empty base dir")
	}
}

func TestStore_LoadRun_RejectsUnknownFieldsAndTrailingContent(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	dir := filepath.Join(base, "runs", "r1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	valid := `{"run_id":"r1","graph_hash":"g","start_time":"2024-01-01T00:00:00Z","concurrency":1,"status":"running","counts":{"total":0,"executed":0,"skipped":0,"failed":0,"cascaded":0,"pending":0},"previous_run_id":null}`
	for _, content := range []string{
		strings.Replace(valid, `"concurrency"`, `"bogus":1,"concurrency"`, 1),
		valid + "{}",
	} {
		if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := store.LoadRun("r1"); err == nil {
			t.Fatalf("expected error loading %s", content)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte(valid), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.LoadRun("r1"); err != nil {
		t.Fatalf("LoadRun(valid): %v", err)
	}
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if ids, err := store.ListRunIDs(); err != nil || len(ids) != 0 {
		t.Fatalf("empty store: %v %v", ids, err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		run := Run{RunID: id, StartTime: base.Add(time.Duration(i) * time.Minute), Status: RunStatusRunning}
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	ids, err := store.ListRunIDs()
	if err != nil {
		t.Fatalf("ListRunIDs: %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("ids not sorted: %v", ids)
	}
	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, r.RunID)
	}
	if strings.Join(got, ",") != "c,a,b" {
		t.Fatalf("runs not newest first: %v", got)
	}
	latest, err := store.LatestRunID()
	if err != nil || latest != "c" {
		t.Fatalf("LatestRunID: %q %v", latest, err)
	}
}

func TestStore_LoadFailure_MissingIsNotExist(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.LoadFailure("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
