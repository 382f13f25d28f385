package core

import "sort"

// Values is a set of named values. Names are unique by construction.
type Values map[string]Value

type (
	// Params are the parameters of a task instance.
	Params = Values
	// Inputs are the resolved input values handed to a RunFunc, keyed by slot.
	Inputs = Values
	// Outputs are the values a RunFunc produces, keyed by output slot.
	Outputs = Values
)

// Entry is one canonicalized (name, encoding) pair.
type Entry struct {
	Name    string
	Encoded string
}

// Set stores v under name after converting it with ValueOf.
func (vs Values) Set(name string, v any) error {
	val, err := ValueOf(v)
	if err != nil {
		return err
	}
	vs[name] = val
	return nil
}

// Names returns the names in sorted order.
func (vs Values) Names() []string {
	names := make([]string, 0, len(vs))
	for name := range vs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical returns the values sorted by name with their type-tagged encoding.
//
// The result does not depend on insertion order.
func (vs Values) Canonical() []Entry {
	names := vs.Names()
	out := make([]Entry, len(names))
	for i, name := range names {
		out[i] = Entry{Name: name, Encoded: vs[name].Canonical()}
	}
	return out
}

// Clone returns a shallow copy. Values are immutable, so this is a full copy.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

func (vs Values) Text(name string) string {
	s, _ := vs[name].Str()
	return s
}

func (vs Values) Int(name string) int64 {
	i, _ := vs[name].Int()
	return i
}

func (vs Values) Float(name string) float64 {
	v := vs[name]
	if i, ok := v.Int(); ok {
		return float64(i)
	}
	f, _ := v.Float()
	return f
}

func (vs Values) Bool(name string) bool {
	b, _ := vs[name].Bool()
	return b
}

// Strings returns a list value as strings, rendering non-string elements.
func (vs Values) Strings(name string) []string {
	elems, ok := vs[name].List()
	if !ok {
		return nil
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.String()
	}
	return out
}
