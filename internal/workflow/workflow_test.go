package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskweave/internal/builtin"
	"taskweave/internal/core"
	"taskweave/internal/dag"
	"taskweave/internal/store"
)

func registry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(builtin.All()...)
	require.NoError(t, err)
	return reg
}

func TestLoad_ExampleWorkflow(t *testing.T) {
	f, err := Load("testdata/example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "example", f.Name)
	assert.Equal(t, []string{"mrg1", "mrg2", "t1a", "t1b"}, f.TaskNames())
	assert.Equal(t, []string{"mrg1", "mrg2"}, f.RootNames())

	w, err := f.Build(registry(t))
	require.NoError(t, err)
	p, err := w.Plan()
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len())

	entries, err := w.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	ids := map[string]core.Identity{}
	for _, e := range entries {
		ids[e.Name] = e.Identity
	}
	assert.NotEqual(t, ids["mrg1"], ids["mrg2"], "swapped inputs give distinct identities")
	assert.Equal(t, `text|text=s"hej_hopp"`, ids["t1a"].String())
	assert.Contains(t, ids["mrg1"].String(), "in_data1<-@"+ids["t1a"].Hash()+":out_data1")

	mrg1, ok := w.Task("mrg1")
	require.True(t, ok)
	assert.Equal(t, "mrg1", w.NameOf(mrg1))

	mem, err := store.NewMemory(0)
	require.NoError(t, err)
	report, err := dag.Execute(context.Background(), mem, 2, w.Roots...)
	require.NoError(t, err)
	require.Equal(t, 0, report.ExitCode())
	tr, ok := report.Task(ids["mrg1"])
	require.True(t, ok)
	assert.Equal(t, "hej_hopphopp_hej", tr.Outputs.Text("out"))
	tr, _ = report.Task(ids["mrg2"])
	assert.Equal(t, "hopp_hejhej_hopp", tr.Outputs.Text("out"))
}

func TestBuild_FreshGraphPerCall(t *testing.T) {
	f, err := Load("testdata/example.yaml")
	require.NoError(t, err)
	reg := registry(t)

	w1, err := f.Build(reg)
	require.NoError(t, err)
	w2, err := f.Build(reg)
	require.NoError(t, err)
	assert.NotSame(t, w1.Graph, w2.Graph)

	p1, err := w1.Plan()
	require.NoError(t, err)
	p2, err := w2.Plan()
	require.NoError(t, err)
	assert.Equal(t, p1.Hash(), p2.Hash())
}

func TestRootNames_DefaultsToSinks(t *testing.T) {
	f, err := Parse([]byte(`
tasks:
  a: {type: text, params: {text: x}}
  b: {type: upper, inputs: {in: a.out_data1}}
  c: {type: text, params: {text: y}}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, f.RootNames())
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"no tasks":       `name: x`,
		"unknown field":  "tasks:\n  a: {type: text, prams: {text: x}}\n",
		"no type":        "tasks:\n  a: {params: {text: x}}\n",
		"bad name":       "tasks:\n  a.b: {type: text}\n",
		"bad ref":        "tasks:\n  a: {type: upper, inputs: {in: nodot}}\n",
		"unknown source": "tasks:\n  a: {type: upper, inputs: {in: b.out}}\n",
		"unknown root":   "tasks:\n  a: {type: text}\nroots: [z]\n",
		"duplicate root": "tasks:\n  a: {type: text}\nroots: [a, a]\n",
		"two documents":  "tasks:\n  a: {type: text}\n---\ntasks:\n  b: {type: text}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
		})
	}
}

func TestBuild_SurfacesGraphErrors(t *testing.T) {
	reg := registry(t)
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown type", "tasks:\n  a: {type: nope}\n", ErrInvalidWorkflow},
		{"bad param type", "tasks:\n  a: {type: text, params: {text: 3}}\n", core.ErrInvalidParameterType},
		{"unknown param", "tasks:\n  a: {type: text, params: {text: x, extra: 1}}\n", core.ErrUnknownParameter},
		{"missing param", "tasks:\n  a: {type: text}\n", core.ErrMissingParameter},
		{"unknown slot", "tasks:\n  a: {type: text, params: {text: x}}\n  b: {type: upper, inputs: {in: a.nope}}\n", core.ErrUnknownSlot},
		{"map param", "tasks:\n  a: {type: text, params: {text: {k: v}}}\n", core.ErrInvalidParameterType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse([]byte(tc.doc))
			require.NoError(t, err)
			_, err = f.Build(reg)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestPlan_CycleAndUnbound(t *testing.T) {
	reg := registry(t)

	f, err := Parse([]byte("tasks:\n  a: {type: upper, inputs: {in: b.out}}\n  b: {type: upper, inputs: {in: a.out}}\nroots: [a]\n"))
	require.NoError(t, err)
	w, err := f.Build(reg)
	require.NoError(t, err)
	_, err = w.Plan()
	assert.ErrorIs(t, err, core.ErrCyclicDependency)

	f, err = Parse([]byte("tasks:\n  a: {type: upper}\n"))
	require.NoError(t, err)
	w, err = f.Build(reg)
	require.NoError(t, err)
	_, err = w.Plan()
	assert.ErrorIs(t, err, core.ErrUnboundRequiredInput)
}

func TestBuild_EveryTaskReadIsNoRoot(t *testing.T) {
	f, err := Parse([]byte("tasks:\n  a: {type: upper, inputs: {in: b.out}}\n  b: {type: upper, inputs: {in: a.out}}\n"))
	require.NoError(t, err)
	_, err = f.Build(registry(t))
	assert.True(t, errors.Is(err, ErrInvalidWorkflow), "got %v", err)
}

func TestRegistry(t *testing.T) {
	reg := registry(t)
	assert.Equal(t, []string{"merge", "shell", "text", "upper"}, reg.Types())
	_, ok := reg.Lookup("text")
	assert.True(t, ok)

	err := reg.Register(builtin.Text)
	assert.ErrorIs(t, err, core.ErrInvalidDefinition)

	err = reg.Register(&core.Definition{Type: "no-run"})
	assert.ErrorIs(t, err, core.ErrInvalidDefinition)
}

func TestPlanEntries_IgnoresTasksOutsideThePlan(t *testing.T) {
	doc := `tasks:
  seed: {type: text, params: {text: x}}
  shout: {type: upper, inputs: {in: seed.out_data1}}
  a: {type: merge, inputs: {in_data1: seed.out_data1, in_data2: b.out}}
  b: {type: merge, inputs: {in_data1: seed.out_data1, in_data2: a.out}}
roots: [shout]
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	w, err := f.Build(registry(t))
	require.NoError(t, err)
	p, err := w.Plan()
	require.NoError(t, err)

	_, err = w.Entries()
	assert.ErrorIs(t, err, core.ErrCyclicDependency)

	entries := w.PlanEntries(p)
	require.Len(t, entries, 2)
	assert.Equal(t, "seed", entries[0].Name)
	assert.Equal(t, "shout", entries[1].Name)
	for _, e := range entries {
		_, ok := p.Node(e.Identity)
		assert.True(t, ok, e.Name)
	}
}
