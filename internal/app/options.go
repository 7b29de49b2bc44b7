package service

import (
	"github.com/okian/dealsync/internal/adapters/inspection"
	repository "github.com/okian/dealsync/internal/adapters/repository"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/shopspring/decimal"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWorkerCount sets the number of planning workers.
func WithWorkerCount(count int) Option {
	return func(e *Engine) {
		if count > 0 {
			e.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the group queue.
func WithQueueSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTrialDeals makes evaluations open deals of their own.
func WithTrialDeals(enabled bool) Option {
	return func(e *Engine) {
		e.trialDeals = enabled
	}
}

// WithMinAmount ignores sales at or below amount.
func WithMinAmount(amount decimal.Decimal) Option {
	return func(e *Engine) {
		if !amount.IsNegative() {
			e.minAmount = amount
		}
	}
}

// WithFailFast aborts the run on the first bad group. Otherwise bad groups
// are skipped and listed in the report.
func WithFailFast(enabled bool) Option {
	return func(e *Engine) {
		e.failFast = enabled
	}
}

// WithInspection records a trace of every group.
func WithInspection(l *inspection.Logger) Option {
	return func(e *Engine) {
		e.inspection = l
	}
}

// WithDirectory sets the contact directory used for associations.
func WithDirectory(d *repository.Directory) Option {
	return func(e *Engine) {
		e.directory = d
	}
}

// WithStore sets the deal registry.
func WithStore(s repository.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithRunID overrides the run id generator.
func WithRunID(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newRunID = gen
		}
	}
}
