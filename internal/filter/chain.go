// internal/filter/chain.go
package filter

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
)

/*
 * Compiled rule chains.
 *
 * A Chain is an immutable snapshot of every rule that applies to one filter:
 * its own definitions followed by each ancestor's, resolved against the
 * registry and sorted by descending priority.
 *
 * Compilation workflow:
 *   1. Walk the parent chain by name, tracking visited names
 *   2. Copy each generation's definitions (name, owner, params)
 *   3. Resolve each definition to a Rule once
 *   4. Stable sort by descending priority
 *
 * Why stable sort: equal priorities keep gathering order (own rules first,
 * then the parent's, then the grandparent's) so execution is deterministic.
 *
 * Same-named rules from different generations are distinct definitions and
 * all execute.
 */

// link is one resolved step of a chain.
type link struct {
	name     string
	owner    string
	params   types.Params
	rule     Rule
	priority int
}

// Chain is a resolved, priority-ordered rule sequence for one filter.
type Chain struct {
	filter string
	links  []link
	logger *zap.Logger
}

// compile resolves and orders the gathered definitions.
func compile(name string, defs []*RuleDef, reg Registry, logger *zap.Logger) (*Chain, error) {
	links := make([]link, 0, len(defs))
	for _, rd := range defs {
		rule, err := resolve(reg, rd.name)
		if err != nil {
			return nil, fmt.Errorf("filter %s: rule %s: %w", name, rd.name, err)
		}
		links = append(links, link{
			name:     rd.name,
			owner:    rd.owner,
			params:   rd.params.Clone(),
			rule:     rule,
			priority: rule.Priority(),
		})
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].priority > links[j].priority
	})

	return &Chain{filter: name, links: links, logger: logger}, nil
}

// Filter runs the chain over items. Caller params override stored params.
// Stops as soon as a rule leaves no items.
func (c *Chain) Filter(ctx context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	if len(items) == 0 {
		return []*types.FilterItem{}, nil
	}

	current := items
	for _, l := range c.links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		effective := l.params.Overlay(params)
		out, err := l.rule.Filter(ctx, current, effective)
		if err != nil {
			return nil, fmt.Errorf("filter %s: rule %s/%s: %w", c.filter, l.owner, l.name, err)
		}

		c.logger.Debug("rule applied",
			zap.String("filter", c.filter),
			zap.String("rule", l.name),
			zap.String("owner", l.owner),
			zap.Int("priority", l.priority),
			zap.Int("in", len(current)),
			zap.Int("out", len(out)),
		)

		current = out
		if len(current) == 0 {
			return []*types.FilterItem{}, nil
		}
	}
	return current, nil
}

// Name returns the filter the chain was compiled for.
func (c *Chain) Name() string { return c.filter }

// Len returns the number of rules in the chain.
func (c *Chain) Len() int { return len(c.links) }

// Rules lists owner/name@priority in execution order.
func (c *Chain) Rules() []string {
	out := make([]string, len(c.links))
	for i, l := range c.links {
		out[i] = l.owner + "/" + l.name + "@" + strconv.Itoa(l.priority)
	}
	return out
}
