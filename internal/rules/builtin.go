package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/solatis/itemfilter/internal/types"
)

// Options tune the built-in rule set.
type Options struct {
	// ScriptTimeout is the sys_script timeout when a filter sets none.
	ScriptTimeout time.Duration
	// Priorities overrides built-in priorities by rule name.
	Priorities map[string]int
}

// NewDefaultRegistry returns a registry holding every built-in rule.
// status backs sys_filterByPublishableFlag; when nil that rule is not
// registered and filters naming it fail to compile.
func NewDefaultRegistry(status StatusLookup, opts Options) (*Registry, error) {
	reg := NewRegistry()
	builtins := []NamedRule{
		SiteRule{},
		FolderRule{},
		DedupeRule{},
		AttributeRule{},
		&ExpressionRule{},
		&ScriptRule{Timeout: opts.ScriptTimeout},
		LimitRule{},
	}
	if status != nil {
		builtins = append(builtins, &PublishableRule{Lookup: status})
	}
	for _, rule := range builtins {
		if err := reg.Register(rule); err != nil {
			return nil, err
		}
	}
	for name, p := range opts.Priorities {
		canonical, ok := lookupFold(reg.Names(), name)
		if !ok {
			return nil, fmt.Errorf("priority override: %w: %s", types.ErrRuleNotFound, name)
		}
		reg.SetPriority(canonical, p)
	}
	return reg, nil
}

// lookupFold finds name ignoring case. Configuration keys arrive lowercased.
func lookupFold(names []string, name string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
