// Package filter implements item filters: named, inheritable chains of rules
// that narrow a list of candidate content items.
package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/itemfilter/internal/types"
)

// TestRuleName always resolves to a rule that returns its input unchanged,
// with or without a registry.
const TestRuleName = "test"

// Rule is an executable rule implementation.
type Rule interface {
	// Priority orders execution; higher runs earlier.
	Priority() int
	// Filter returns the subset of items the rule keeps.
	Filter(ctx context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error)
}

// Registry resolves rule names to implementations.
// Resolve must return an error wrapping types.ErrRuleNotFound for unknown names.
type Registry interface {
	Resolve(name string) (Rule, error)
}

type nopRule struct{}

func (nopRule) Priority() int { return 0 }

func (nopRule) Filter(_ context.Context, items []*types.FilterItem, _ types.Params) ([]*types.FilterItem, error) {
	return items, nil
}

// resolve looks up name, short-circuiting the test rule.
func resolve(reg Registry, name string) (Rule, error) {
	if name == TestRuleName {
		return nopRule{}, nil
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: %s (no registry)", types.ErrRuleNotFound, name)
	}
	return reg.Resolve(name)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
