package core

import (
	"context"
	"regexp"
)

// RunFunc is the compute procedure of a task.
//
// It must be a pure function of its inputs and parameters as far as its
// outputs are concerned. Side effects are allowed if they are deterministic
// for a given identity, otherwise memoization is unsound.
type RunFunc func(ctx context.Context, in Inputs, params Params) (Outputs, error)

// ParamSpec declares one accepted parameter.
//
// A parameter without a Default is required.
type ParamSpec struct {
	Name    string
	Kind    Kind
	Default Value
}

// SlotSpec declares a named input or output slot.
//
// Kind KindAny leaves the slot untyped. Optional only applies to inputs.
type SlotSpec struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Definition is the metadata of a task type. Declaring one has no side effects.
type Definition struct {
	Type    string
	Params  []ParamSpec
	Inputs  []SlotSpec
	Outputs []SlotSpec
	Run     RunFunc
}

var (
	namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
)

// Validate checks names, uniqueness, defaults and the presence of Run.
func (d *Definition) Validate() error {
	if d == nil {
		return Errorf(ErrInvalidDefinition, "nil definition")
	}
	if !typePattern.MatchString(d.Type) {
		return Errorf(ErrInvalidDefinition, "invalid type name %q", d.Type)
	}
	if d.Run == nil {
		return Errorf(ErrInvalidDefinition, "%s: run is required", d.Type)
	}

	seen := make(map[string]string)
	claim := func(name, what string) error {
		if !namePattern.MatchString(name) {
			return Errorf(ErrInvalidDefinition, "%s: invalid %s name %q", d.Type, what, name)
		}
		if prev, ok := seen[name]; ok {
			return Errorf(ErrInvalidDefinition, "%s: %s name %q already used by a %s", d.Type, what, name, prev)
		}
		seen[name] = what
		return nil
	}

	for _, p := range d.Params {
		if err := claim(p.Name, "parameter"); err != nil {
			return err
		}
		if p.Default.IsValid() && !p.Kind.Accepts(p.Default.Kind()) {
			return Errorf(ErrInvalidDefinition, "%s: default of %q is %s, want %s", d.Type, p.Name, p.Default.Kind(), p.Kind)
		}
	}
	for _, s := range d.Inputs {
		if err := claim(s.Name, "input"); err != nil {
			return err
		}
	}
	for _, s := range d.Outputs {
		if err := claim(s.Name, "output"); err != nil {
			return err
		}
		if s.Optional {
			return Errorf(ErrInvalidDefinition, "%s: output %q cannot be optional", d.Type, s.Name)
		}
	}
	return nil
}

func (d *Definition) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

func (d *Definition) Input(name string) (SlotSpec, bool) {
	return findSlot(d.Inputs, name)
}

func (d *Definition) Output(name string) (SlotSpec, bool) {
	return findSlot(d.Outputs, name)
}

func findSlot(slots []SlotSpec, name string) (SlotSpec, bool) {
	for _, s := range slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotSpec{}, false
}

// CheckParam validates v against the schema of parameter name and returns
// the value to store. An Int given for a Float parameter is widened so that
// the canonical form does not depend on how the caller spelled the number.
func (d *Definition) CheckParam(name string, v any) (Value, error) {
	spec, ok := d.Param(name)
	if !ok {
		return Value{}, Errorf(ErrUnknownParameter, "%s has no parameter %q", d.Type, name)
	}
	val, err := ValueOf(v)
	if err != nil {
		return Value{}, &Error{Kind: ErrInvalidParameterType, Msg: d.Type + "." + name + ": " + errDetail(err)}
	}
	if spec.Kind == KindFloat && val.Kind() == KindInt {
		i, _ := val.Int()
		val = Float(float64(i))
	}
	if !spec.Kind.Accepts(val.Kind()) {
		return Value{}, Errorf(ErrInvalidParameterType, "%s.%s: got %s, want %s", d.Type, name, val.Kind(), spec.Kind)
	}
	return val, nil
}

// ResolveParams checks assigned against the schema and fills in defaults.
func (d *Definition) ResolveParams(assigned map[string]any) (Params, error) {
	out := make(Params, len(d.Params))
	for name, raw := range assigned {
		v, err := d.CheckParam(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	for _, p := range d.Params {
		if _, ok := out[p.Name]; ok {
			continue
		}
		if !p.Default.IsValid() {
			return nil, Errorf(ErrMissingParameter, "%s requires parameter %q", d.Type, p.Name)
		}
		out[p.Name] = p.Default
	}
	return out, nil
}

// CheckOutputs verifies that out holds exactly the declared outputs with
// matching kinds.
func (d *Definition) CheckOutputs(out Outputs) error {
	for _, s := range d.Outputs {
		v, ok := out[s.Name]
		if !ok || !v.IsValid() {
			return Errorf(ErrUnknownSlot, "%s did not produce output %q", d.Type, s.Name)
		}
		if !s.Kind.Accepts(v.Kind()) {
			return Errorf(ErrTypeMismatch, "%s output %q is %s, want %s", d.Type, s.Name, v.Kind(), s.Kind)
		}
		if !v.finite() {
			return Errorf(ErrInvalidParameterType, "%s output %q holds a non-finite float", d.Type, s.Name)
		}
	}
	for name := range out {
		if _, ok := d.Output(name); !ok {
			return Errorf(ErrUnknownSlot, "%s produced undeclared output %q", d.Type, name)
		}
	}
	return nil
}

// errDetail strips the kind prefix of an *Error so it is not repeated.
func errDetail(err error) string {
	if e, ok := err.(*Error); ok && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
