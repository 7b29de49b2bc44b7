package repository

import (
	"context"
	"strings"
)

// ContactKind separates end customers from solution partners.
type ContactKind uint8

const (
	ContactCustomer ContactKind = iota + 1
	ContactPartner
)

func (k ContactKind) String() string {
	switch k {
	case ContactCustomer:
		return "customer"
	case ContactPartner:
		return "partner"
	default:
		return "unknown"
	}
}

// Contact is a CRM contact.
type Contact struct {
	Email       string
	OtherEmails []string
	Kind        ContactKind
	Company     string
}

// Directory resolves contacts by any of their email addresses, case-insensitively.
// Read-only after construction.
type Directory struct {
	byEmail map[string]Contact
}

// NewDirectory indexes contacts. Later contacts do not replace earlier ones
// that share an address.
func NewDirectory(contacts []Contact) *Directory {
	d := &Directory{byEmail: make(map[string]Contact, len(contacts))}
	for _, c := range contacts {
		for _, email := range append([]string{c.Email}, c.OtherEmails...) {
			key := normalizeEmail(email)
			if key == "" {
				continue
			}
			if _, exists := d.byEmail[key]; !exists {
				d.byEmail[key] = c
			}
		}
	}
	return d
}

// GetByEmail returns the contact owning email. Absence is not an error.
func (d *Directory) GetByEmail(ctx context.Context, email string) (Contact, bool) {
	if d == nil {
		return Contact{}, false
	}
	c, ok := d.byEmail[normalizeEmail(email)]
	return c, ok
}

// Len returns the number of indexed addresses.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byEmail)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part of email after the last @, lower-cased.
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return normalizeEmail(email[at+1:])
}
