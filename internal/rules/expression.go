package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/solatis/itemfilter/internal/types"
)

// ExpressionRule keeps items for which an expr-lang boolean expression holds.
//
// The expression sees:
//
//	itemId, folderId, siteId  string GUIDs ("" when absent)
//	contentId                 decoded content id of the item
//	attrs                     item attributes
//	params                    effective rule parameters
//
// Example: `attrs.locale == "en-us" && contentId > 300`.
//
// Compiled programs are kept in a bounded LRU keyed by source, since callers
// may override expr per request.
type ExpressionRule struct {
	once     sync.Once
	programs *lru.Cache[string, *vm.Program]
}

// expressionCacheSize bounds the compiled program cache.
const expressionCacheSize = 256

type expressionConfig struct {
	Expr string `param:"expr"`
}

func (*ExpressionRule) Name() string  { return "sys_expression" }
func (*ExpressionRule) Priority() int { return PriorityExpression }

func (r *ExpressionRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	var cfg expressionConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	program, err := r.program(cfg.Expr)
	if err != nil {
		return nil, err
	}

	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		env, err := itemEnv(it, params)
		if err != nil {
			return nil, err
		}
		res, err := vm.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("%s: evaluate %q: %w", r.Name(), cfg.Expr, err)
		}
		if keep, ok := res.(bool); ok && keep {
			out = append(out, it)
		}
	}
	return out, nil
}

// program compiles source, reusing a cached program when present.
func (r *ExpressionRule) program(source string) (*vm.Program, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: %s: expr required", types.ErrInvalidArgument, r.Name())
	}
	r.once.Do(func() {
		// New only fails for a non-positive size.
		r.programs, _ = lru.New[string, *vm.Program](expressionCacheSize)
	})
	if p, ok := r.programs.Get(source); ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidArgument, r.Name(), err)
	}
	r.programs.Add(source, p)
	return p, nil
}

// itemEnv is the variable set shared by expression and script rules.
func itemEnv(it *types.FilterItem, params types.Params) (map[string]any, error) {
	contentID, err := it.ContentID()
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]any, len(it.Attributes))
	for k, v := range it.Attributes {
		attrs[k] = v
	}
	ps := make(map[string]any, len(params))
	for k, v := range params {
		ps[k] = v
	}
	return map[string]any{
		"itemId":    string(it.ItemID),
		"folderId":  string(it.FolderID),
		"siteId":    string(it.SiteID),
		"contentId": contentID,
		"attrs":     attrs,
		"params":    ps,
	}, nil
}
