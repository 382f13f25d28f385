package store

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskweave/internal/core"
	"taskweave/internal/dag"
)

func concatDefs(runs *atomic.Int32) (text, merge *core.Definition) {
	text = &core.Definition{
		Type:    "T1",
		Params:  []core.ParamSpec{{Name: "text", Kind: core.KindString}},
		Outputs: []core.SlotSpec{{Name: "out_data1", Kind: core.KindString}},
		Run: func(_ context.Context, _ core.Inputs, p core.Params) (core.Outputs, error) {
			runs.Add(1)
			return core.Outputs{"out_data1": core.String(p.Text("text"))}, nil
		},
	}
	merge = &core.Definition{
		Type: "Merge",
		Inputs: []core.SlotSpec{
			{Name: "in_data1", Kind: core.KindString},
			{Name: "in_data2", Kind: core.KindString},
		},
		Outputs: []core.SlotSpec{{Name: "out", Kind: core.KindString}},
		Run: func(_ context.Context, in core.Inputs, _ core.Params) (core.Outputs, error) {
			runs.Add(1)
			return core.Outputs{"out": core.String(in.Text("in_data1") + in.Text("in_data2"))}, nil
		},
	}
	return text, merge
}

// A second process over the same directory skips the producers and feeds
// their stored outputs to the new consumer.
func TestFile_ResumesAcrossExecutors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	var runs atomic.Int32
	text, merge := concatDefs(&runs)

	first := dag.NewGraph()
	a, err := first.New(text, map[string]any{"text": "hej"})
	require.NoError(t, err)
	b, err := first.New(text, map[string]any{"text": "hopp"})
	require.NoError(t, err)

	fs, err := NewFile(dir)
	require.NoError(t, err)
	report, err := dag.Execute(ctx, fs, 2, a, b)
	require.NoError(t, err)
	require.Equal(t, 0, report.ExitCode())
	require.EqualValues(t, 2, runs.Load())

	second := dag.NewGraph()
	a2, err := second.New(text, map[string]any{"text": "hej"})
	require.NoError(t, err)
	b2, err := second.New(text, map[string]any{"text": "hopp"})
	require.NoError(t, err)
	mrg, err := second.New(merge, nil)
	require.NoError(t, err)
	require.NoError(t, second.Bind(mrg, "in_data1", a2.Out("out_data1")))
	require.NoError(t, second.Bind(mrg, "in_data2", b2.Out("out_data1")))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	cached, err := NewCached(reopened, 16)
	require.NoError(t, err)
	report, err = dag.Execute(ctx, cached, 2, mrg)
	require.NoError(t, err)
	require.Equal(t, 0, report.ExitCode())
	assert.EqualValues(t, 3, runs.Load(), "only the merge runs")
	assert.Len(t, report.SkippedTasks(), 2)

	id, err := mrg.Identity()
	require.NoError(t, err)
	tr, ok := report.Task(id)
	require.True(t, ok)
	assert.True(t, core.String("hejhopp").Equal(tr.Outputs["out"]))

	outs, err := reopened.LoadOutputs(ctx, id)
	require.NoError(t, err)
	assert.True(t, core.String("hejhopp").Equal(outs["out"]))
}
