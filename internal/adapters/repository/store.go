// Package repository holds the deal registry and the contact directory the
// engine reads and writes.
package repository

import (
	"context"
	"time"

	"github.com/okian/dealsync/internal/domain/actions"
)

// Deal is a stored deal with its associations.
type Deal struct {
	Ref        actions.DealRef
	Properties actions.Properties
	Contacts   []string
	Companies  []string
	Partner    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Association is the set of contacts, companies and partner domain linked to a deal.
type Association struct {
	Contacts  []string
	Companies []string
	Partner   string
}

// Store provides read/write access to deals.
//
// A created deal is visible to Lookup as soon as Create returns.
type Store interface {
	actions.Registry

	// Create stores a new deal and indexes it by its license ids.
	Create(ctx context.Context, props actions.Properties) (actions.DealRef, error)
	// Update replaces the properties of ref. Returns ErrNotFound if ref is unknown.
	Update(ctx context.Context, ref actions.DealRef, props actions.Properties) error
	// Associate replaces the associations of ref.
	Associate(ctx context.Context, ref actions.DealRef, a Association) error

	// Get returns a copy of the stored deal.
	Get(ctx context.Context, ref actions.DealRef) (Deal, error)
	// Deals returns every deal in creation order.
	Deals(ctx context.Context) []Deal
	Count(ctx context.Context) int
}
