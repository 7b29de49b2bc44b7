// Package actions folds a group's lifecycle events into CRM deal mutations.
package actions

import (
	"slices"
	"time"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Stage is a deal pipeline stage.
type Stage string

const (
	StageEvaluation Stage = "evaluation"
	StageClosedWon  Stage = "closedwon"
	StageClosedLost Stage = "closedlost"
	StageRefunded   Stage = "refunded"
)

// ParseStage maps a stored stage name back to a Stage.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageEvaluation, StageClosedWon, StageClosedLost, StageRefunded:
		return st, nil
	default:
		return "", &model.InputError{Reason: "unknown deal stage " + s}
	}
}

// DealRef identifies a deal in the registry.
type DealRef string

// Property names reported in Action.Changes.
const (
	PropName           = "name"
	PropAddonKey       = "addon_key"
	PropStage          = "stage"
	PropAmount         = "amount"
	PropCloseDate      = "close_date"
	PropTier           = "tier"
	PropHosting        = "hosting"
	PropLicenseIDs     = "license_ids"
	PropTransactionIDs = "transaction_ids"
)

// Properties is the managed property set of one deal.
type Properties struct {
	Name           string
	AddonKey       string
	Stage          Stage
	Amount         decimal.Decimal
	CloseDate      time.Time
	Tier           int
	Hosting        model.Hosting
	LicenseIDs     []string
	TransactionIDs []string
}

// Diff returns the names of the properties where p differs from old,
// in declaration order. An empty result means p is already in place.
func (p Properties) Diff(old Properties) []string {
	var changes []string
	if p.Name != old.Name {
		changes = append(changes, PropName)
	}
	if p.AddonKey != old.AddonKey {
		changes = append(changes, PropAddonKey)
	}
	if p.Stage != old.Stage {
		changes = append(changes, PropStage)
	}
	if !p.Amount.Equal(old.Amount) {
		changes = append(changes, PropAmount)
	}
	if !p.CloseDate.Equal(old.CloseDate) {
		changes = append(changes, PropCloseDate)
	}
	if p.Tier != old.Tier {
		changes = append(changes, PropTier)
	}
	if p.Hosting != old.Hosting {
		changes = append(changes, PropHosting)
	}
	if !slices.Equal(p.LicenseIDs, old.LicenseIDs) {
		changes = append(changes, PropLicenseIDs)
	}
	if !slices.Equal(p.TransactionIDs, old.TransactionIDs) {
		changes = append(changes, PropTransactionIDs)
	}
	return changes
}

// Clone returns a copy that shares no slices with p.
func (p Properties) Clone() Properties {
	p.LicenseIDs = slices.Clone(p.LicenseIDs)
	p.TransactionIDs = slices.Clone(p.TransactionIDs)
	return p
}
