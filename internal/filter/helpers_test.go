package filter

import (
	"context"
	"fmt"
	"testing"

	"github.com/solatis/itemfilter/internal/types"
)

// stubRule records every invocation and delegates to fn.
type stubRule struct {
	name     string
	priority int
	fn       func(items []*types.FilterItem, params types.Params) []*types.FilterItem
	log      *[]string
	calls    int
	params   []types.Params
	inputs   [][]*types.FilterItem
}

func (s *stubRule) Priority() int { return s.priority }

func (s *stubRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	s.calls++
	s.params = append(s.params, params)
	s.inputs = append(s.inputs, items)
	if s.log != nil {
		*s.log = append(*s.log, s.name)
	}
	if s.fn == nil {
		return items, nil
	}
	return s.fn(items, params), nil
}

type mapRegistry map[string]Rule

func (m mapRegistry) Resolve(name string) (Rule, error) {
	r, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, name)
	}
	return r, nil
}

// countingRegistry counts lookups to prove short-circuits skip resolution.
type countingRegistry struct {
	mapRegistry
	lookups int
}

func (c *countingRegistry) Resolve(name string) (Rule, error) {
	c.lookups++
	return c.mapRegistry.Resolve(name)
}

func dropAll(_ []*types.FilterItem, _ types.Params) []*types.FilterItem {
	return nil
}

func keepFirst(items []*types.FilterItem, _ types.Params) []*types.FilterItem {
	return items[:1]
}

func mustFilter(t *testing.T, name string, rules ...*RuleDef) *Filter {
	t.Helper()
	f, err := NewFilter(name, "")
	if err != nil {
		t.Fatalf("NewFilter(%q) error = %v, want nil", name, err)
	}
	for _, rd := range rules {
		if err := f.AddRule(rd); err != nil {
			t.Fatalf("AddRule(%q) error = %v, want nil", rd.Name(), err)
		}
	}
	return f
}

func mustRuleDef(t *testing.T, name string, params types.Params) *RuleDef {
	t.Helper()
	rd, err := NewRuleDef(name, params)
	if err != nil {
		t.Fatalf("NewRuleDef(%q) error = %v, want nil", name, err)
	}
	return rd
}

func mustItems(t *testing.T, ids ...string) []*types.FilterItem {
	t.Helper()
	items := make([]*types.FilterItem, 0, len(ids))
	for _, id := range ids {
		it, err := types.NewFilterItem(types.GUID(id), "", "", nil, nil)
		if err != nil {
			t.Fatalf("NewFilterItem(%q) error = %v, want nil", id, err)
		}
		items = append(items, it)
	}
	return items
}

func mustPut(t *testing.T, c *Catalog, filters ...*Filter) {
	t.Helper()
	for _, f := range filters {
		if err := c.Put(f); err != nil {
			t.Fatalf("Put(%q) error = %v, want nil", f.Name(), err)
		}
	}
}
