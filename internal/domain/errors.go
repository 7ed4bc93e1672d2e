package domain

import "errors"

// Sentinel errors shared by repositories and services.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Sentinel errors for tag set operations. Callers match them with errors.Is;
// the returned errors wrap them with the offending code and field.
var (
	// ErrConfiguration means the (kind, field) pair is not declared as a tag field.
	ErrConfiguration = errors.New("not a tag field")
	// ErrInvalidValue means a code or label does not resolve against the allow-list.
	ErrInvalidValue = errors.New("invalid tag")
	// ErrCapacityExceeded means the operation would take the set past its limit.
	ErrCapacityExceeded = errors.New("maximum number of tags reached")
)
