// Package types contains the report shapes shared by the engine, the CLI and the
// report server.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report summarises one engine run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Groups  int `json:"groups"`
	Creates int `json:"creates"`
	Updates int `json:"updates"`

	Events   map[string]int `json:"events"`
	Ignored  []IgnoredRow   `json:"ignored"`
	Warnings []Warning      `json:"warnings"`
	Skipped  []Skipped      `json:"skipped"`
}

// Actions returns the number of deal mutations applied.
func (r *Report) Actions() int { return r.Creates + r.Updates }

// IgnoredTotal sums the ignored amounts over every reason.
func (r *Report) IgnoredTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.Ignored {
		total = total.Add(row.Amount)
	}
	return total
}

// IgnoredRow is one reason of the ignored-amount table.
type IgnoredRow struct {
	Reason string          `json:"reason"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Warning is an invariant violation that left a group's deals untouched.
type Warning struct {
	Group  string `json:"group"`
	Deal   string `json:"deal,omitempty"`
	Reason string `json:"reason"`
}

// Skipped is a group dropped because of bad input when the run continues past errors.
type Skipped struct {
	Group  string `json:"group"`
	Reason string `json:"reason"`
}
