package vcard

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrNotFound = errors.New("vcard: property not found")
	ErrNoValue  = errors.New("vcard: property has no value")
)

// Extract removes the first property named name from c and returns its value.
// A property that is present but valueless is still removed and reported as
// ErrNoValue. When no property matches, c is left untouched and ErrNotFound
// is returned.
func Extract(c *Contact, name string) (string, error) {
	i := c.Index(name)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	value, ok := c.Remove(i).Text()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoValue, name)
	}
	return value, nil
}
