// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/itemfilter/internal/types"
)

/*
 * Attribute comparison operators.
 *
 * Operators:
 *   - exists/missing: presence checks, no value needed
 *   - eq/neq: equality with numeric tolerance
 *   - lt/lte/gt/gte: numeric comparison only
 *   - prefix/suffix: string prefix/suffix matching
 *   - in: membership test with equality semantics
 *
 * Values are coerced via Coerce() before reaching Compare(). Numeric
 * comparisons on non-numeric operands return false rather than erroring.
 */

// Operator selects a comparison.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpPrefix
	OpSuffix
	OpIn
	OpExists
	OpMissing
)

var operatorNames = map[string]Operator{
	"eq":      OpEq,
	"neq":     OpNeq,
	"lt":      OpLt,
	"lte":     OpLte,
	"gt":      OpGt,
	"gte":     OpGte,
	"prefix":  OpPrefix,
	"suffix":  OpSuffix,
	"in":      OpIn,
	"exists":  OpExists,
	"missing": OpMissing,
}

// ParseOperator maps an operator name to its Operator. Empty means eq.
func ParseOperator(s string) (Operator, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OpEq, nil
	}
	op, ok := operatorNames[s]
	if !ok {
		return OpUnspecified, fmt.Errorf("%w: unknown operator %q", types.ErrInvalidArgument, s)
	}
	return op, nil
}

// Compare applies the operator to compare value against target.
// Both values should already be coerced to compatible types.
func Compare(op Operator, value, target any) bool {
	switch op {
	case OpEq:
		return compareEqual(value, target)
	case OpNeq:
		return !compareEqual(value, target)
	case OpLt:
		c, ok := compareNumeric(value, target)
		return ok && c < 0
	case OpLte:
		c, ok := compareNumeric(value, target)
		return ok && c <= 0
	case OpGt:
		c, ok := compareNumeric(value, target)
		return ok && c > 0
	case OpGte:
		c, ok := compareNumeric(value, target)
		return ok && c >= 0
	case OpPrefix:
		return compareAffix(value, target, strings.HasPrefix)
	case OpSuffix:
		return compareAffix(value, target, strings.HasSuffix)
	case OpIn:
		return compareIn(value, target)
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison.
// ok is false for incomparable operands.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := a.(float64)
	nb, okb := b.(float64)
	return na, nb, oka && okb
}

func compareAffix(value, affix any, match func(s, affix string) bool) bool {
	vs, ok1 := value.(string)
	as, ok2 := affix.(string)
	if !ok1 || !ok2 {
		return false
	}
	return match(vs, as)
}

// compareIn checks if value equals any element of set.
func compareIn(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}
