// Package timeline orders a related license set into one chronological sequence.
package timeline

import (
	"sort"
	"time"

	"github.com/okian/dealsync/internal/domain/model"
)

// EntryKind orders entries that share a date.
type EntryKind uint8

const (
	// LicenseStart is a license at its maintenance start date.
	LicenseStart EntryKind = iota + 1
	// TransactionSale is a transaction at its sale date.
	TransactionSale
	// LicenseEnd is derived from an inactive license at its maintenance end date.
	// It is not an input record.
	LicenseEnd
)

func (k EntryKind) String() string {
	switch k {
	case LicenseStart:
		return "license"
	case TransactionSale:
		return "transaction"
	case LicenseEnd:
		return "license-end"
	default:
		return "unknown"
	}
}

// Entry is one point on the timeline.
type Entry struct {
	Kind        EntryKind
	Date        time.Time
	Tier        int
	SourceID    string
	License     model.LicenseID
	Transaction model.TransactionID // valid only for TransactionSale
}

// Record returns the input record behind the entry.
func (e Entry) Record() model.RecordRef {
	if e.Kind == TransactionSale {
		return model.TransactionRef(e.Transaction)
	}
	return model.LicenseRef(e.License)
}

// Derived reports whether the entry was synthesized rather than read.
func (e Entry) Derived() bool { return e.Kind == LicenseEnd }

// Build returns the entries of set in timeline order: date, then licenses before
// transactions before derived license ends, then lower tier first, then source id.
// The result is a pure function of its inputs.
func Build(a *model.Arena, set model.RelatedLicenseSet) []Entry {
	var entries []Entry
	for _, c := range set.Contexts {
		l := a.License(c.License)
		entries = append(entries, Entry{
			Kind:     LicenseStart,
			Date:     l.MaintenanceStart,
			Tier:     l.Tier,
			SourceID: l.SourceID,
			License:  c.License,
		})
		if l.Status == model.StatusInactive && !l.MaintenanceEnd.IsZero() {
			entries = append(entries, Entry{
				Kind:     LicenseEnd,
				Date:     l.MaintenanceEnd,
				Tier:     l.Tier,
				SourceID: l.SourceID,
				License:  c.License,
			})
		}
		for _, tid := range c.Transactions {
			t := a.Transaction(tid)
			entries = append(entries, Entry{
				Kind:        TransactionSale,
				Date:        t.SaleDate,
				Tier:        t.Tier,
				SourceID:    t.SourceID,
				License:     c.License,
				Transaction: tid,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return entries
}

func less(a, b Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	return a.SourceID < b.SourceID
}
