package repository

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrNotFound = errors.New("deal not found")
	ErrConflict = errors.New("license already owned by another deal")
)
