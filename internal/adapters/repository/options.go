package repository

import (
	"time"

	"github.com/okian/dealsync/pkg/logger"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithIDGenerator replaces the uuid generator for new deal refs.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock replaces time.Now for deal timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemStore) {
		if l != nil {
			s.log = l
		}
	}
}
