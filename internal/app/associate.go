package service

import (
	"context"
	"fmt"
	"slices"
	"sort"

	repository "github.com/okian/dealsync/internal/adapters/repository"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/domain/timeline"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/okian/dealsync/pkg/metrics"
)

// associate links ref to the contacts and companies found on the group's
// records and to the domain of the most recent partner contact. Unchanged
// associations are not rewritten.
func (e *Engine) associate(ctx context.Context, a *model.Arena, p *Plan, ref actions.DealRef) error {
	want := e.associationFor(ctx, a, p.Set)

	have, err := e.store.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: group %s: %v", ErrApply, p.GroupID, err)
	}
	changed := false
	if !slices.Equal(have.Contacts, want.Contacts) {
		metrics.RecordAssociation("contacts")
		changed = true
	}
	if !slices.Equal(have.Companies, want.Companies) {
		metrics.RecordAssociation("companies")
		changed = true
	}
	if have.Partner != want.Partner {
		metrics.RecordAssociation("partner")
		changed = true
	}
	if !changed {
		return nil
	}
	if err := e.store.Associate(ctx, ref, want); err != nil {
		return fmt.Errorf("%w: group %s: %v", ErrApply, p.GroupID, err)
	}
	e.logger.Debug(ctx, "deal associations updated",
		logger.String("group", p.GroupID),
		logger.String("deal", string(ref)),
		logger.Int("contacts", len(want.Contacts)),
		logger.Int("companies", len(want.Companies)),
		logger.String("partner", want.Partner))
	return nil
}

func (e *Engine) associationFor(ctx context.Context, a *model.Arena, set model.RelatedLicenseSet) repository.Association {
	var found []repository.Contact
	seenEmail := make(map[string]bool)
	seenContact := make(map[string]bool)
	for _, ref := range set.Records() {
		for _, c := range a.Contacts(ref) {
			if seenEmail[c.Email] {
				continue
			}
			seenEmail[c.Email] = true
			contact, ok := e.directory.GetByEmail(ctx, c.Email)
			if !ok || seenContact[contact.Email] {
				continue
			}
			seenContact[contact.Email] = true
			found = append(found, contact)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Kind == repository.ContactCustomer && found[j].Kind != repository.ContactCustomer
	})

	var out repository.Association
	seenCompany := make(map[string]bool)
	for _, c := range found {
		out.Contacts = append(out.Contacts, c.Email)
		if c.Kind == repository.ContactCustomer && c.Company != "" && !seenCompany[c.Company] {
			seenCompany[c.Company] = true
			out.Companies = append(out.Companies, c.Company)
		}
	}
	out.Partner = e.lastPartnerDomain(ctx, a, set)
	return out
}

// lastPartnerDomain walks the records newest first and returns the domain of
// the first partner contact.
func (e *Engine) lastPartnerDomain(ctx context.Context, a *model.Arena, set model.RelatedLicenseSet) string {
	entries := timeline.Build(a, set)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Derived() {
			continue
		}
		contacts := a.Contacts(entries[i].Record())
		for j := len(contacts) - 1; j >= 0; j-- {
			if e.isPartner(ctx, contacts[j]) {
				return repository.EmailDomain(contacts[j].Email)
			}
		}
	}
	return ""
}

func (e *Engine) isPartner(ctx context.Context, c model.ContactRef) bool {
	if contact, ok := e.directory.GetByEmail(ctx, c.Email); ok {
		return contact.Kind == repository.ContactPartner
	}
	return c.Role == model.RolePartner
}
