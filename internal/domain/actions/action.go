package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/dealsync/internal/domain/events"
)

// Kind is the closed set of deal mutations. No-ops are never emitted.
type Kind uint8

const (
	CreateDeal Kind = iota + 1
	UpdateDeal
)

func (k Kind) String() string {
	switch k {
	case CreateDeal:
		return "create"
	case UpdateDeal:
		return "update"
	default:
		return "unknown"
	}
}

// Action is one planned deal mutation.
//
// For UpdateDeal, an empty Deal refers to the deal created by an earlier action
// of the same plan. Properties always holds the full desired state; Changes lists
// what differs from the state before the action.
type Action struct {
	Kind       Kind
	Deal       DealRef
	Properties Properties
	Changes    []string

	// Trigger and Date name the event that produced the action.
	Trigger events.Kind
	Date    time.Time
}

func (a Action) String() string {
	switch a.Kind {
	case CreateDeal:
		return fmt.Sprintf("create %s %s stage=%s amount=%s", a.Date.Format(time.DateOnly), a.Trigger, a.Properties.Stage, a.Properties.Amount.StringFixed(2))
	case UpdateDeal:
		deal := string(a.Deal)
		if deal == "" {
			deal = "new"
		}
		return fmt.Sprintf("update %s %s deal=%s [%s] stage=%s amount=%s", a.Date.Format(time.DateOnly), a.Trigger, deal,
			strings.Join(a.Changes, ","), a.Properties.Stage, a.Properties.Amount.StringFixed(2))
	default:
		return "unknown"
	}
}

// Registry is the read side of the deal store used while planning.
type Registry interface {
	// Lookup returns the deal that owns licenseID, if any.
	Lookup(ctx context.Context, licenseID string) (DealRef, bool, error)
	// Current returns the stored properties of ref.
	Current(ctx context.Context, ref DealRef) (Properties, error)
}
