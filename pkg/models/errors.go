package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAttribute is returned when an attribute map carries a key outside the allow-list.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrInvalidAttribute is returned when an allow-listed attribute has the wrong type.
	ErrInvalidAttribute = errors.New("invalid attribute value")

	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// AttributeError carries the entity and key that failed attribute assignment.
type AttributeError struct {
	Entity string
	Key    string
	Err    error
}

func (e *AttributeError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("attribute %q: %v", e.Key, e.Err)
	}

	return fmt.Sprintf("%s attribute %q: %v", e.Entity, e.Key, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}
