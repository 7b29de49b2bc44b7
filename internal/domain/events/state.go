package events

import (
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Status is the running license status of a track.
type Status uint8

const (
	StatusNone Status = iota
	StatusTrial
	StatusActive
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusTrial:
		return "trial"
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// State is what the interpreter carries across the walk.
type State struct {
	Status   Status
	Tier     int
	PaidTier int
	Hosting  model.Hosting

	// Paid is the net vendor amount booked so far, refunds included.
	Paid     decimal.Decimal
	Refunded decimal.Decimal
	HasPaid  bool
	// EverPaid stays set once any sale was booked, refunds notwithstanding.
	EverPaid bool

	Current         model.LicenseID
	HasCurrent      bool
	LastTransaction model.TransactionID
	HasTransaction  bool
}

func (s *State) book(amount decimal.Decimal) {
	s.Paid = s.Paid.Add(amount)
	s.HasPaid = s.Paid.IsPositive()
	s.EverPaid = s.EverPaid || s.HasPaid
}

func (s *State) touch(license model.LicenseID) {
	s.Current = license
	s.HasCurrent = true
}

func (s *State) sold(tid model.TransactionID, t *model.Transaction) {
	s.LastTransaction = tid
	s.HasTransaction = true
	s.touch(t.License)
	if t.Hosting != 0 {
		s.Hosting = t.Hosting
	}
}
