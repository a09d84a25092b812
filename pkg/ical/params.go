package ical

import (
	"slices"
	"strings"
)

// Param is a single property parameter.
type Param struct {
	Name  string
	Value string
}

// Params keeps parameters in insertion order. Lookups ignore case.
type Params []Param

// Get returns the value of the named parameter.
func (ps Params) Get(name string) (string, bool) {
	for _, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (ps Params) Value(name string) string {
	v, _ := ps.Get(name)
	return v
}

// Set replaces the named parameter, or appends it.
func (ps *Params) Set(name, value string) {
	for i, p := range *ps {
		if strings.EqualFold(p.Name, name) {
			(*ps)[i].Value = value
			return
		}
	}
	*ps = append(*ps, Param{Name: name, Value: value})
}

// Del removes the named parameter.
func (ps *Params) Del(name string) {
	*ps = slices.DeleteFunc(*ps, func(p Param) bool {
		return strings.EqualFold(p.Name, name)
	})
}

func (ps Params) Clone() Params {
	return slices.Clone(ps)
}

// quoteParam wraps values containing ':' or ';' in double quotes. Commas
// are left bare so multi-valued parameters keep their shape.
func quoteParam(v string) string {
	if strings.ContainsAny(v, ":;") {
		return `"` + v + `"`
	}
	return v
}
