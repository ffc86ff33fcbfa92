// Package rules provides the rule registry and the built-in item filter rules.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
)

// NamedRule is a rule implementation registered under a fixed name.
type NamedRule interface {
	filter.Rule
	Name() string
}

// Registry maps rule names to implementations. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	rules      map[string]NamedRule
	priorities map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:      make(map[string]NamedRule),
		priorities: make(map[string]int),
	}
}

// Register adds rule under rule.Name(). Names are unique.
func (r *Registry) Register(rule NamedRule) error {
	name := rule.Name()
	if name == "" || name == filter.TestRuleName {
		return fmt.Errorf("%w: reserved or empty rule name %q", types.ErrInvalidArgument, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[name]; ok {
		return fmt.Errorf("rule already registered: %s", name)
	}
	r.rules[name] = rule
	return nil
}

// Unregister removes the named rule.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[name]; !ok {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, name)
	}
	delete(r.rules, name)
	return nil
}

// SetPriority overrides the priority reported for name.
// Applies to rules registered before or after the call.
func (r *Registry) SetPriority(name string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priorities[name] = priority
}

// Resolve implements filter.Registry.
func (r *Registry) Resolve(name string) (filter.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, name)
	}
	if p, ok := r.priorities[name]; ok {
		return prioritized{NamedRule: rule, priority: p}, nil
	}
	return rule, nil
}

// Names returns registered rule names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// prioritized overrides the wrapped rule's priority.
type prioritized struct {
	NamedRule
	priority int
}

func (p prioritized) Priority() int { return p.priority }
