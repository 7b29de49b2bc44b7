package service

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrApply = errors.New("apply plan failed")
)
