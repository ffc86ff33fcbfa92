package rules

import (
	"context"
	"fmt"

	"github.com/solatis/itemfilter/internal/types"
)

// StatusLookup returns the publishable flag of each known content id.
// Unknown ids are absent from the result.
type StatusLookup interface {
	PublishableFlags(ctx context.Context, contentIDs []int64) (map[int64]string, error)
}

type publishableConfig struct {
	Flags []string `param:"sys_flagValues"`
}

// PublishableRule keeps items whose content status flag is one of
// sys_flagValues (default "y").
type PublishableRule struct {
	Lookup StatusLookup
}

func (*PublishableRule) Name() string  { return "sys_filterByPublishableFlag" }
func (*PublishableRule) Priority() int { return PriorityPublishable }

func (r *PublishableRule) Filter(ctx context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	var cfg publishableConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	flags := trimAll(cfg.Flags)
	if len(flags) == 0 {
		flags = []string{"y"}
	}
	allowed := make(map[string]bool, len(flags))
	for _, f := range flags {
		allowed[f] = true
	}

	ids := make([]int64, len(items))
	seen := make(map[int64]bool, len(items))
	unique := make([]int64, 0, len(items))
	for i, it := range items {
		id, err := it.ContentID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	status, err := r.Lookup.PublishableFlags(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}

	out := make([]*types.FilterItem, 0, len(items))
	for i, it := range items {
		if flag, ok := status[ids[i]]; ok && allowed[flag] {
			out = append(out, it)
		}
	}
	return out, nil
}
