// internal/rules/coercion.go
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/itemfilter/internal/types"
)

/*
 * Type coercion for attribute comparison.
 *
 * Attributes and rule parameters are strings; the rule's `type` parameter
 * decides how both sides are read before comparison.
 *
 * Type modes:
 *   - text: compare raw strings (default)
 *   - numeric: strict, trimmed strings parsed as float64
 *   - boolean: strict, only "true"/"false" (case-insensitive)
 *
 * A coercion failure on the item side means the item does not match; on the
 * parameter side it is a configuration error reported to the caller.
 */

// FieldType selects how attribute strings are interpreted.
type FieldType int

const (
	FieldTypeText FieldType = iota
	FieldTypeNumeric
	FieldTypeBoolean
)

// ParseFieldType maps a type name to its FieldType. Empty means text.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return FieldTypeText, nil
	case "numeric", "number":
		return FieldTypeNumeric, nil
	case "boolean", "bool":
		return FieldTypeBoolean, nil
	default:
		return FieldTypeText, fmt.Errorf("%w: unknown field type %q", types.ErrInvalidArgument, s)
	}
}

// errCoercion marks a value that cannot be read as the requested type.
var errCoercion = errors.New("type coercion failed")

// Coerce converts s to the Go value used for comparison under ft.
func Coerce(s string, ft FieldType) (any, error) {
	switch ft {
	case FieldTypeNumeric:
		v := strings.TrimSpace(s)
		if v == "" {
			return nil, errCoercion
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errCoercion
		}
		return f, nil
	case FieldTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, errCoercion
		}
	default:
		return s, nil
	}
}
