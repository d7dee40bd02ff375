/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package crx

import (
	"errors"
	"strings"
)

// IDLength is the exact length of a Chrome extension identifier.
const IDLength = 32

// ErrInvalidID is returned when a string is not a syntactically valid extension identifier.
var ErrInvalidID = errors.New("invalid extension identifier")

// ID is a validated Chrome extension identifier, normalized to lowercase.
type ID string

// ParseID validates an arbitrary string as an extension identifier.
// Identifiers are exactly 32 latin letters; matching is case-insensitive,
// the returned ID is always lowercase.
func ParseID(s string) (ID, error) {
	if len(s) != IDLength {
		return "", ErrInvalidID
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return "", ErrInvalidID
		}
	}
	return ID(strings.ToLower(s)), nil
}

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}
