// Package model contains the record arena shared by every engine stage.
//
// Licenses and transactions live in flat slices and refer to each other by
// index, so there are no back-pointers to keep in sync.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LicenseID indexes Arena.Licenses.
type LicenseID int

// TransactionID indexes Arena.Transactions.
type TransactionID int

// RecordKind tells which arena table a RecordRef points into.
type RecordKind uint8

const (
	KindLicense RecordKind = iota + 1
	KindTransaction
)

func (k RecordKind) String() string {
	switch k {
	case KindLicense:
		return "license"
	case KindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// RecordRef addresses a single input record.
type RecordRef struct {
	Kind  RecordKind
	Index int
}

// LicenseRef returns a reference to a license.
func LicenseRef(id LicenseID) RecordRef { return RecordRef{Kind: KindLicense, Index: int(id)} }

// TransactionRef returns a reference to a transaction.
func TransactionRef(id TransactionID) RecordRef {
	return RecordRef{Kind: KindTransaction, Index: int(id)}
}

// ContactRef is a contact attached to a marketplace record.
type ContactRef struct {
	Email string
	Role  ContactRole
}

// License is one marketplace license. Immutable after loading.
type License struct {
	SourceID         string
	AddonKey         string
	Tier             int
	Hosting          Hosting
	Status           LicenseStatus
	MaintenanceStart time.Time
	MaintenanceEnd   time.Time
	Evaluation       bool
	Sandbox          bool
	Partner          string
	Contacts         []ContactRef
}

// Transaction is one sale, renewal, upgrade or refund of a license.
type Transaction struct {
	SourceID     string
	License      LicenseID
	SaleDate     time.Time
	SaleType     SaleType
	Tier         int
	Hosting      Hosting
	VendorAmount decimal.Decimal
	Partner      string
	Contacts     []ContactRef
}

// Arena owns every record of a run.
type Arena struct {
	Licenses     []License
	Transactions []Transaction
}

// AddLicense appends l and returns its id.
func (a *Arena) AddLicense(l License) LicenseID {
	a.Licenses = append(a.Licenses, l)
	return LicenseID(len(a.Licenses) - 1)
}

// AddTransaction appends t and returns its id.
func (a *Arena) AddTransaction(t Transaction) TransactionID {
	a.Transactions = append(a.Transactions, t)
	return TransactionID(len(a.Transactions) - 1)
}

// License returns the license with the given id.
func (a *Arena) License(id LicenseID) *License { return &a.Licenses[id] }

// Transaction returns the transaction with the given id.
func (a *Arena) Transaction(id TransactionID) *Transaction { return &a.Transactions[id] }

// SourceID returns the marketplace identifier of any record.
func (a *Arena) SourceID(ref RecordRef) string {
	if ref.Kind == KindLicense {
		return a.Licenses[ref.Index].SourceID
	}
	return a.Transactions[ref.Index].SourceID
}

// Contacts returns the contacts of any record.
func (a *Arena) Contacts(ref RecordRef) []ContactRef {
	if ref.Kind == KindLicense {
		return a.Licenses[ref.Index].Contacts
	}
	return a.Transactions[ref.Index].Contacts
}

// Amount returns the vendor amount of a transaction and zero for licenses.
func (a *Arena) Amount(ref RecordRef) decimal.Decimal {
	if ref.Kind == KindTransaction {
		return a.Transactions[ref.Index].VendorAmount
	}
	return decimal.Zero
}
