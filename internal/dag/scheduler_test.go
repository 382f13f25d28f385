package dag

import (
	"reflect"
	"testing"

	"taskweave/internal/core"
)

func TestScheduler_ReadyTasks_SortedByDepthThenIdentity(t *testing.T) {
	runs := &runCounter{}
	s := exampleScenario(t, textDef(runs), mergeDef(runs), runs)
	p := mustValidate(t, s.graph, s.mrg2, s.mrg1)
	t1a, t1b, mrg1, mrg2 := mustID(t, s.t1a), mustID(t, s.t1b), mustID(t, s.mrg1), mustID(t, s.mrg2)

	state := NewExecutionState(p)
	got := GetReadyTasks(p, state)
	want := sortedByKey(t1a, t1b)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roots: got %v want %v", got, want)
	}

	// One producer done is not enough for either merge.
	state[t1a] = TaskComplete
	if got := GetReadyTasks(p, state); !reflect.DeepEqual(got, []core.Identity{t1b}) {
		t.Fatalf("after t1a: got %v", got)
	}

	state[t1b] = TaskComplete
	got = GetReadyTasks(p, state)
	want = sortedByKey(mrg1, mrg2)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merges: got %v want %v", got, want)
	}
}

func TestScheduler_ReadyIncludesReadyStateButNotRunning(t *testing.T) {
	p, ids := chainPlan(t)
	a, d := ids[0], ids[3]
	state := NewExecutionState(p)
	state[a] = TaskReady
	state[d] = TaskRunning

	got := GetReadyTasks(p, state)
	if !reflect.DeepEqual(got, []core.Identity{a}) {
		t.Fatalf("got %v want [%s]", got, a)
	}
}

func TestScheduler_FailedProducerBlocksConsumer(t *testing.T) {
	p, ids := chainPlan(t)
	a, b := ids[0], ids[1]
	state := NewExecutionState(p)
	state[a] = TaskFailed

	for _, id := range GetReadyTasks(p, state) {
		if id == b {
			t.Fatalf("consumer of a FAILED producer must never be ready")
		}
	}
}

func sortedByKey(a, b core.Identity) []core.Identity {
	if a.String() < b.String() {
		return []core.Identity{a, b}
	}
	return []core.Identity{b, a}
}
