package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/itemfilter/internal/types"
)

type attributeConfig struct {
	Attribute string `param:"attribute"`
	Op        string `param:"op"`
	Value     string `param:"value"`
	Type      string `param:"type"`
}

// compiledAttribute is an attributeConfig with operator, type and target
// already parsed.
type compiledAttribute struct {
	name   string
	op     Operator
	ft     FieldType
	target any
}

// AttributeRule keeps items whose attribute satisfies a comparison.
type AttributeRule struct{}

func (AttributeRule) Name() string  { return "sys_filterByAttribute" }
func (AttributeRule) Priority() int { return PriorityAttribute }

func (r AttributeRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	ca, err := r.compile(params)
	if err != nil {
		return nil, err
	}
	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		if ca.match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r AttributeRule) compile(params types.Params) (compiledAttribute, error) {
	var cfg attributeConfig
	if err := decodeParams(params, &cfg); err != nil {
		return compiledAttribute{}, err
	}
	if strings.TrimSpace(cfg.Attribute) == "" {
		return compiledAttribute{}, fmt.Errorf("%w: %s: attribute required", types.ErrInvalidArgument, r.Name())
	}
	op, err := ParseOperator(cfg.Op)
	if err != nil {
		return compiledAttribute{}, err
	}
	ft, err := ParseFieldType(cfg.Type)
	if err != nil {
		return compiledAttribute{}, err
	}
	ca := compiledAttribute{name: cfg.Attribute, op: op, ft: ft}

	switch op {
	case OpExists, OpMissing:
	case OpIn:
		var set []any
		for _, s := range trimAll(strings.Split(cfg.Value, ",")) {
			v, err := Coerce(s, ft)
			if err != nil {
				return compiledAttribute{}, fmt.Errorf("%w: %s: value %q", types.ErrInvalidArgument, r.Name(), s)
			}
			set = append(set, v)
		}
		ca.target = set
	default:
		v, err := Coerce(cfg.Value, ft)
		if err != nil {
			return compiledAttribute{}, fmt.Errorf("%w: %s: value %q", types.ErrInvalidArgument, r.Name(), cfg.Value)
		}
		ca.target = v
	}
	return ca, nil
}

func (ca compiledAttribute) match(it *types.FilterItem) bool {
	raw, ok := it.Attribute(ca.name)
	switch ca.op {
	case OpExists:
		return ok
	case OpMissing:
		return !ok
	}
	if !ok {
		return false
	}
	v, err := Coerce(raw, ca.ft)
	if err != nil {
		return false
	}
	return Compare(ca.op, v, ca.target)
}
