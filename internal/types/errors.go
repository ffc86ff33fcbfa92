package types

import "errors"

// Sentinel errors for itemfilter operations.
// Callers add context with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrInvalidArgument indicates a blank or missing required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidGUID indicates an identifier that is not <host>-<type>-<uuid> or a bare id.
	ErrInvalidGUID = errors.New("invalid guid")

	// ErrRuleNotFound indicates a rule name the registry cannot resolve.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrProbableCycle indicates the parent chain revisits a filter.
	ErrProbableCycle = errors.New("probable cycle in filter parent chain")

	// ErrFilterNotFound indicates an unknown filter name.
	ErrFilterNotFound = errors.New("filter not found")

	// ErrFilterExists indicates a filter name is already taken.
	ErrFilterExists = errors.New("filter already exists")

	// ErrFilterInUse indicates a filter is still referenced as a parent.
	ErrFilterInUse = errors.New("filter is parent of another filter")

	// ErrDuplicateRule indicates a filter already holds a rule with that name.
	ErrDuplicateRule = errors.New("duplicate rule name in filter")

	// ErrStaleFilter indicates an edit based on an outdated filter version.
	ErrStaleFilter = errors.New("filter was modified concurrently")

	// ErrTooManyAttributes indicates more than MaxAttributePairs attributes.
	ErrTooManyAttributes = errors.New("too many item attributes")

	// ErrAttributeKeyTooLong indicates an attribute key exceeds MaxAttributeKeyLength.
	ErrAttributeKeyTooLong = errors.New("attribute key too long")

	// ErrAttributeValueTooLong indicates an attribute value exceeds MaxAttributeValueLength.
	ErrAttributeValueTooLong = errors.New("attribute value too long")
)
