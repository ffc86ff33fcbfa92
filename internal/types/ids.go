package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewFilterID generates a UUIDv7 filter identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewFilterID() FilterID {
	return FilterID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleDefID generates a UUIDv7 rule definition identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleDefID() RuleDefID {
	return RuleDefID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleDefID validates and converts a string to RuleDefID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleDefID(s string) (RuleDefID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: rule definition id: %v", ErrInvalidArgument, err)
	}
	return RuleDefID(s), nil
}

// ParseFilterID validates and converts a string to FilterID.
func ParseFilterID(s string) (FilterID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: filter id: %v", ErrInvalidArgument, err)
	}
	return FilterID(s), nil
}

// GUID identifies a content object, folder or site.
// Text form is <host>-<type>-<uuid>; a bare number is a legacy content id.
type GUID string

// ParseGUID validates s and returns it as a GUID.
func ParseGUID(s string) (GUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidGUID)
	}
	if _, err := guidUUID(s); err != nil {
		return "", err
	}
	return GUID(s), nil
}

// IsZero reports whether the GUID is absent.
func (g GUID) IsZero() bool {
	return g == ""
}

// UUID returns the numeric uuid part. Returns 0 for an absent or malformed GUID.
func (g GUID) UUID() int64 {
	n, err := guidUUID(string(g))
	if err != nil {
		return 0
	}
	return n
}

func guidUUID(s string) (int64, error) {
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1, 3:
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGUID, s)
	}
	var last int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidGUID, s)
		}
		last = n
	}
	return last, nil
}
