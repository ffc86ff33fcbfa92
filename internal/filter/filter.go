package filter

import (
	"fmt"

	"github.com/solatis/itemfilter/internal/types"
)

// Filter is a named set of rule definitions with an optional parent.
// The parent is referenced by name and resolved through a Catalog.
type Filter struct {
	ID             types.FilterID
	Description    string
	Parent         string
	LegacyAuthtype *int
	Version        int

	name  string
	rules []*RuleDef
}

// NewFilter creates an empty filter with a fresh ID.
func NewFilter(name, description string) (*Filter, error) {
	if blank(name) {
		return nil, fmt.Errorf("%w: filter name required", types.ErrInvalidArgument)
	}
	return &Filter{
		ID:          types.NewFilterID(),
		name:        name,
		Description: description,
	}, nil
}

// Name returns the filter's natural key.
func (f *Filter) Name() string { return f.name }

// Rules returns the rule definitions in insertion order.
// The slice is a copy; the definitions are shared.
func (f *Filter) Rules() []*RuleDef {
	out := make([]*RuleDef, len(f.rules))
	copy(out, f.rules)
	return out
}

// Rule returns the definition with the given name, or nil.
func (f *Filter) Rule(name string) *RuleDef {
	for _, rd := range f.rules {
		if rd.name == name {
			return rd
		}
	}
	return nil
}

// AddRule adopts rd into this filter. Names are unique per filter.
func (f *Filter) AddRule(rd *RuleDef) error {
	if rd == nil {
		return fmt.Errorf("%w: nil rule definition", types.ErrInvalidArgument)
	}
	if f.Rule(rd.name) != nil {
		return fmt.Errorf("%w: %s in %s", types.ErrDuplicateRule, rd.name, f.name)
	}
	rd.owner = f.name
	f.rules = append(f.rules, rd)
	return nil
}

// RemoveRule drops the named rule and reports whether it was present.
func (f *Filter) RemoveRule(name string) bool {
	for i, rd := range f.rules {
		if rd.name == name {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy sharing nothing mutable with f.
func (f *Filter) Clone() *Filter {
	out := &Filter{
		ID:          f.ID,
		Description: f.Description,
		Parent:      f.Parent,
		Version:     f.Version,
		name:        f.name,
		rules:       make([]*RuleDef, len(f.rules)),
	}
	if f.LegacyAuthtype != nil {
		v := *f.LegacyAuthtype
		out.LegacyAuthtype = &v
	}
	for i, rd := range f.rules {
		out.rules[i] = rd.clone()
	}
	return out
}
