// Package types provides domain models shared across itemfilter components.
//
// Zero-dependency design: types.go, item.go and errors.go use only the
// standard library so the filter core can be embedded without pulling in
// storage or transport deps. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import (
	"fmt"
	"strings"
)

// FilterID represents a UUIDv7 filter identifier.
// String alias enables type safety while maintaining JSON string serialization.
type FilterID string

// RuleDefID represents a UUIDv7 rule definition identifier.
// Survives merges so persistence layers keep row identity for unchanged rules.
type RuleDefID string

// Params maps rule parameter names to values.
type Params map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Overlay returns a copy of p with every entry of over written on top.
// Entries in over win on key collision.
func (p Params) Overlay(over Params) Params {
	out := p.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Attributes represents caller-provided item attributes.
// String-only values keep rule comparison uniform; rules coerce as needed.
type Attributes map[string]string

// Resource limits enforced on caller input to bound per-request work.
const (
	// MaxAttributePairs limits attribute pairs to prevent unbounded iteration.
	MaxAttributePairs = 64

	// MaxAttributeKeyLength prevents excessively long keys.
	MaxAttributeKeyLength = 128

	// MaxAttributeValueLength prevents unbounded value sizes.
	MaxAttributeValueLength = 1024
)

// Validate checks attribute count and key/value sizes.
func (a Attributes) Validate() error {
	if len(a) > MaxAttributePairs {
		return fmt.Errorf("%w: %d pairs, max %d", ErrTooManyAttributes, len(a), MaxAttributePairs)
	}
	for k, v := range a {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: blank attribute key", ErrInvalidArgument)
		}
		if len(k) > MaxAttributeKeyLength {
			return fmt.Errorf("%w: %q", ErrAttributeKeyTooLong, k)
		}
		if len(v) > MaxAttributeValueLength {
			return fmt.Errorf("%w: %q", ErrAttributeValueTooLong, k)
		}
	}
	return nil
}
