package filter

import (
	"fmt"

	"github.com/solatis/itemfilter/internal/types"
)

// RuleDef binds a rule name to stored parameters inside one filter.
type RuleDef struct {
	ID     types.RuleDefID
	name   string
	owner  string
	params types.Params
}

// NewRuleDef creates an unowned rule definition with a fresh ID.
func NewRuleDef(name string, params types.Params) (*RuleDef, error) {
	if blank(name) {
		return nil, fmt.Errorf("%w: rule name required", types.ErrInvalidArgument)
	}
	rd := &RuleDef{
		ID:     types.NewRuleDefID(),
		name:   name,
		params: make(types.Params, len(params)),
	}
	for k, v := range params {
		if err := rd.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	return rd, nil
}

// RestoreRuleDef rebuilds a persisted definition keeping its ID.
func RestoreRuleDef(id types.RuleDefID, name string, params types.Params) (*RuleDef, error) {
	rd, err := NewRuleDef(name, params)
	if err != nil {
		return nil, err
	}
	rd.ID = id
	return rd, nil
}

// Name returns the rule name.
func (rd *RuleDef) Name() string { return rd.name }

// Owner returns the name of the owning filter, empty until added to one.
func (rd *RuleDef) Owner() string { return rd.owner }

// Params returns a copy of the stored parameters.
func (rd *RuleDef) Params() types.Params { return rd.params.Clone() }

// Param returns one stored parameter.
func (rd *RuleDef) Param(key string) (string, bool) {
	v, ok := rd.params[key]
	return v, ok
}

// SetParam adds or replaces a parameter. Keys and values must be non-blank.
func (rd *RuleDef) SetParam(key, value string) error {
	if blank(key) {
		return fmt.Errorf("%w: rule %s: parameter name required", types.ErrInvalidArgument, rd.name)
	}
	if blank(value) {
		return fmt.Errorf("%w: rule %s: parameter %s value required", types.ErrInvalidArgument, rd.name, key)
	}
	rd.params[key] = value
	return nil
}

// RemoveParam deletes a parameter; absent keys are ignored.
func (rd *RuleDef) RemoveParam(key string) {
	delete(rd.params, key)
}

// Equal reports whether both definitions name the same rule in the same filter.
func (rd *RuleDef) Equal(other *RuleDef) bool {
	if rd == nil || other == nil {
		return rd == other
	}
	return rd.name == other.name && rd.owner == other.owner
}

func (rd *RuleDef) clone() *RuleDef {
	return &RuleDef{
		ID:     rd.ID,
		name:   rd.name,
		owner:  rd.owner,
		params: rd.params.Clone(),
	}
}
