package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers distinguish bad input from broken invariants
// with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvariant    = errors.New("invariant violation")
)

// InputError reports malformed records or groups. It is fatal for the group.
type InputError struct {
	Group  string
	Record string
	Reason string
}

func (e *InputError) Error() string {
	switch {
	case e.Group != "" && e.Record != "":
		return fmt.Sprintf("invalid input in group %s, record %s: %s", e.Group, e.Record, e.Reason)
	case e.Record != "":
		return fmt.Sprintf("invalid input in record %s: %s", e.Record, e.Reason)
	case e.Group != "":
		return fmt.Sprintf("invalid input in group %s: %s", e.Group, e.Reason)
	default:
		return "invalid input: " + e.Reason
	}
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// InvariantError reports state that the engine refuses to guess around,
// e.g. two deals claiming the same license track.
type InvariantError struct {
	Group  string
	Deal   string
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Deal != "" {
		return fmt.Sprintf("invariant violation in group %s, deal %s: %s", e.Group, e.Deal, e.Reason)
	}
	return fmt.Sprintf("invariant violation in group %s: %s", e.Group, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
