// Package modeltest builds small record arenas for tests.
package modeltest

import (
	"time"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Day parses a YYYY-MM-DD date and panics on malformed input.
func Day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// LicenseOption customises a license.
type LicenseOption func(*model.License)

// Eval marks the license as an evaluation.
func Eval() LicenseOption { return func(l *model.License) { l.Evaluation = true } }

// Sandbox marks the license as a sandbox instance.
func Sandbox() LicenseOption { return func(l *model.License) { l.Sandbox = true } }

// Inactive sets the license inactive with the given maintenance end date.
func Inactive(end string) LicenseOption {
	return func(l *model.License) {
		l.Status = model.StatusInactive
		l.MaintenanceEnd = Day(end)
	}
}

// Hosted sets the hosting type.
func Hosted(h model.Hosting) LicenseOption { return func(l *model.License) { l.Hosting = h } }

// LicenseContact attaches a contact to the license.
func LicenseContact(email string, role model.ContactRole) LicenseOption {
	return func(l *model.License) {
		l.Contacts = append(l.Contacts, model.ContactRef{Email: email, Role: role})
	}
}

// SaleOption customises a transaction.
type SaleOption func(*model.Transaction)

// SalePartner sets the partner of record.
func SalePartner(p string) SaleOption { return func(t *model.Transaction) { t.Partner = p } }

// SaleContact attaches a contact to the transaction.
func SaleContact(email string, role model.ContactRole) SaleOption {
	return func(t *model.Transaction) {
		t.Contacts = append(t.Contacts, model.ContactRef{Email: email, Role: role})
	}
}

// Builder accumulates one related license set.
type Builder struct {
	Arena    *model.Arena
	contexts map[model.LicenseID]int
	set      model.RelatedLicenseSet
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{Arena: &model.Arena{}, contexts: make(map[model.LicenseID]int)}
}

// License adds a license starting on start with the given tier.
func (b *Builder) License(id, start string, tier int, opts ...LicenseOption) model.LicenseID {
	l := model.License{
		SourceID:         id,
		AddonKey:         "com.example.addon",
		Tier:             tier,
		Hosting:          model.HostingServer,
		Status:           model.StatusActive,
		MaintenanceStart: Day(start),
		MaintenanceEnd:   Day(start).AddDate(1, 0, 0),
	}
	for _, opt := range opts {
		opt(&l)
	}
	lid := b.Arena.AddLicense(l)
	b.contexts[lid] = len(b.set.Contexts)
	b.set.Contexts = append(b.set.Contexts, model.LicenseContext{License: lid})
	return lid
}

// Sale adds a transaction to license. amount is a decimal string.
func (b *Builder) Sale(license model.LicenseID, id string, saleType model.SaleType, date string, tier int, amount string, opts ...SaleOption) model.TransactionID {
	t := model.Transaction{
		SourceID:     id,
		License:      license,
		SaleDate:     Day(date),
		SaleType:     saleType,
		Tier:         tier,
		Hosting:      b.Arena.License(license).Hosting,
		VendorAmount: decimal.RequireFromString(amount),
	}
	for _, opt := range opts {
		opt(&t)
	}
	tid := b.Arena.AddTransaction(t)
	c := &b.set.Contexts[b.contexts[license]]
	c.Transactions = append(c.Transactions, tid)
	return tid
}

// Set returns the related license set built so far.
func (b *Builder) Set() model.RelatedLicenseSet {
	out := model.RelatedLicenseSet{Contexts: make([]model.LicenseContext, len(b.set.Contexts))}
	for i, c := range b.set.Contexts {
		out.Contexts[i] = model.LicenseContext{
			License:      c.License,
			Transactions: append([]model.TransactionID(nil), c.Transactions...),
		}
	}
	return out
}

// NewSet starts another related license set sharing the same arena.
func (b *Builder) NewSet() *Builder {
	return &Builder{Arena: b.Arena, contexts: make(map[model.LicenseID]int)}
}
