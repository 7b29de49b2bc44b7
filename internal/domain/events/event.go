// Package events interprets a timeline as a sequence of license lifecycle events.
package events

import (
	"time"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of lifecycle events.
type Kind uint8

const (
	EvalStarted Kind = iota + 1
	EvalEnded
	PurchasedLicense
	RenewedLicense
	UpgradedLicense
	RefundedLicense
	LicenseLapsed
	LicenseReinstated
)

func (k Kind) String() string {
	switch k {
	case EvalStarted:
		return "eval-started"
	case EvalEnded:
		return "eval-ended"
	case PurchasedLicense:
		return "purchased"
	case RenewedLicense:
		return "renewed"
	case UpgradedLicense:
		return "upgraded"
	case RefundedLicense:
		return "refunded"
	case LicenseLapsed:
		return "lapsed"
	case LicenseReinstated:
		return "reinstated"
	default:
		return "unknown"
	}
}

// Revenue reports whether the event books money on the track.
func (k Kind) Revenue() bool {
	switch k {
	case PurchasedLicense, RenewedLicense, UpgradedLicense:
		return true
	case EvalStarted, EvalEnded, RefundedLicense, LicenseLapsed, LicenseReinstated:
		return false
	default:
		return false
	}
}

// Event is an immutable interpretation of one or more records.
//
// Records lists the input records that triggered the event; derived events
// (lapses and eval expiries) have none and point at their license instead.
type Event struct {
	Kind      Kind
	Date      time.Time
	License   model.LicenseID
	Records   []model.RecordRef
	Tier      int
	TierDelta int
	Hosting   model.Hosting
	Amount    decimal.Decimal
	Partner   string
}

// Transaction returns the transaction that triggered the event, if any.
func (e Event) Transaction() (model.TransactionID, bool) {
	for i := len(e.Records) - 1; i >= 0; i-- {
		if e.Records[i].Kind == model.KindTransaction {
			return model.TransactionID(e.Records[i].Index), true
		}
	}
	return 0, false
}
