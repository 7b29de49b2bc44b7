package fixture

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/dealsync/internal/domain/model"
)

// redactor replaces contact emails and partner names with stable
// placeholders numbered in order of first appearance. Two emails on the same
// domain keep sharing a domain after redaction.
type redactor struct {
	emails   map[string]string
	domains  map[string]string
	partners map[string]string
}

func newRedactor() *redactor {
	return &redactor{
		emails:   map[string]string{},
		domains:  map[string]string{},
		partners: map[string]string{},
	}
}

func (r *redactor) email(e string) string {
	key := strings.ToLower(strings.TrimSpace(e))
	if out, ok := r.emails[key]; ok {
		return out
	}
	domain := ""
	if at := strings.LastIndexByte(key, '@'); at >= 0 {
		domain = key[at+1:]
	}
	d, ok := r.domains[domain]
	if !ok {
		d = fmt.Sprintf("domain%d.example", len(r.domains)+1)
		r.domains[domain] = d
	}
	out := fmt.Sprintf("contact%d@%s", len(r.emails)+1, d)
	r.emails[key] = out
	return out
}

func (r *redactor) partner(p string) string {
	if p == "" {
		return ""
	}
	if out, ok := r.partners[p]; ok {
		return out
	}
	out := fmt.Sprintf("partner%d", len(r.partners)+1)
	r.partners[p] = out
	return out
}

func (r *redactor) contacts(cs []model.ContactRef) []Contact {
	if len(cs) == 0 {
		return nil
	}
	out := make([]Contact, len(cs))
	for i, c := range cs {
		out[i] = Contact{Email: r.email(c.Email), Role: c.Role.String()}
	}
	return out
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func (r *redactor) license(l *model.License) License {
	return License{
		ID:               l.SourceID,
		AddonKey:         l.AddonKey,
		Tier:             l.Tier,
		Hosting:          l.Hosting.String(),
		Status:           l.Status.String(),
		MaintenanceStart: day(l.MaintenanceStart),
		MaintenanceEnd:   day(l.MaintenanceEnd),
		Evaluation:       l.Evaluation,
		Sandbox:          l.Sandbox,
		Partner:          r.partner(l.Partner),
		Contacts:         r.contacts(l.Contacts),
	}
}

func (r *redactor) transaction(t *model.Transaction) Transaction {
	return Transaction{
		ID:       t.SourceID,
		SaleDate: day(t.SaleDate),
		SaleType: t.SaleType.String(),
		Tier:     t.Tier,
		Hosting:  t.Hosting.String(),
		Amount:   t.VendorAmount.String(),
		Partner:  r.partner(t.Partner),
		Contacts: r.contacts(t.Contacts),
	}
}
