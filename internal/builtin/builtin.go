// Package builtin provides the task definitions available to workflow files.
package builtin

import (
	"context"
	"strings"

	"taskweave/internal/core"
)

// Text emits its text parameter.
var Text = &core.Definition{
	Type:    "text",
	Params:  []core.ParamSpec{{Name: "text", Kind: core.KindString}},
	Outputs: []core.SlotSpec{{Name: "out_data1", Kind: core.KindString}},
	Run: func(_ context.Context, _ core.Inputs, p core.Params) (core.Outputs, error) {
		return core.Outputs{"out_data1": core.String(p.Text("text"))}, nil
	},
}

// Merge concatenates its two inputs around an optional separator.
var Merge = &core.Definition{
	Type:   "merge",
	Params: []core.ParamSpec{{Name: "separator", Kind: core.KindString, Default: core.String("")}},
	Inputs: []core.SlotSpec{
		{Name: "in_data1", Kind: core.KindString},
		{Name: "in_data2", Kind: core.KindString},
	},
	Outputs: []core.SlotSpec{{Name: "out", Kind: core.KindString}},
	Run: func(_ context.Context, in core.Inputs, p core.Params) (core.Outputs, error) {
		out := in.Text("in_data1") + p.Text("separator") + in.Text("in_data2")
		return core.Outputs{"out": core.String(out)}, nil
	},
}

var Upper = &core.Definition{
	Type:    "upper",
	Inputs:  []core.SlotSpec{{Name: "in", Kind: core.KindString}},
	Outputs: []core.SlotSpec{{Name: "out", Kind: core.KindString}},
	Run: func(_ context.Context, in core.Inputs, _ core.Params) (core.Outputs, error) {
		return core.Outputs{"out": core.String(strings.ToUpper(in.Text("in")))}, nil
	},
}

// All returns every built-in definition.
func All() []*core.Definition {
	return []*core.Definition{Text, Merge, Upper, Shell}
}
