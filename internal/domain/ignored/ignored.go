// Package ignored collects records deliberately excluded from event generation.
//
// A List belongs to one group and is filled by a single goroutine. Totals is
// shared across a batch; lists are merged into it once their group is done.
package ignored

import (
	"sort"
	"sync"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Reasons recorded by the interpreter.
const (
	ReasonZeroAmount       = "zero-amount transaction"
	ReasonBelowThreshold   = "below-threshold transaction"
	ReasonDuplicateEval    = "duplicate evaluation license"
	ReasonDuplicateSandbox = "duplicate sandbox license"
	ReasonNoTransactions   = "license without transactions"
	ReasonNoEvents         = "license without events"
	ReasonRepeatPurchase   = "repeat purchase transaction"
)

// Entry is one ignored record.
type Entry struct {
	Record   model.RecordRef
	SourceID string
	Reason   string
	Details  string
	Amount   decimal.Decimal
}

// List is the per-group ignored list.
type List struct {
	entries []Entry
}

// Record appends an ignored record.
func (l *List) Record(ref model.RecordRef, sourceID, reason, details string, amount decimal.Decimal) {
	l.entries = append(l.entries, Entry{
		Record:   ref,
		SourceID: sourceID,
		Reason:   reason,
		Details:  details,
		Amount:   amount,
	})
}

// Entries returns the recorded entries in insertion order.
func (l *List) Entries() []Entry {
	if l == nil {
		return nil
	}
	return l.entries
}

// Len returns the number of ignored records.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Row is one line of the reason -> amount table.
type Row struct {
	Reason string
	Count  int
	Amount decimal.Decimal
}

// Totals is the batch-wide reason -> amount table. Safe for concurrent use.
type Totals struct {
	mu     sync.Mutex
	amount map[string]decimal.Decimal
	count  map[string]int
	lists  [][]Entry
}

// NewTotals returns an empty table.
func NewTotals() *Totals {
	return &Totals{
		amount: make(map[string]decimal.Decimal),
		count:  make(map[string]int),
	}
}

// Merge folds a group's list into the table and keeps the list for inspection.
func (t *Totals) Merge(l *List) {
	if l.Len() == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range l.entries {
		t.amount[e.Reason] = t.amount[e.Reason].Add(e.Amount)
		t.count[e.Reason]++
	}
	t.lists = append(t.lists, append([]Entry(nil), l.entries...))
}

// Amount returns the running total for reason.
func (t *Totals) Amount(reason string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amount[reason]
}

// Rows returns the table sorted by reason.
func (t *Totals) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([]Row, 0, len(t.amount))
	for reason, amount := range t.amount {
		rows = append(rows, Row{Reason: reason, Count: t.count[reason], Amount: amount})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Reason < rows[j].Reason })
	return rows
}

// Lists returns every merged group list in merge order.
func (t *Totals) Lists() [][]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]Entry(nil), t.lists...)
}
