// Package dataset reads the marketplace and CRM snapshot the engine runs on,
// and writes the resulting deals back in the same shape.
package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/okian/dealsync/internal/adapters/repository"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	dateLayout = "2006-01-02"
	schemaURL  = "dealsync://dataset.schema.json"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Dataset is a decoded snapshot.
type Dataset struct {
	Arena    *model.Arena
	Groups   []model.RelatedLicenseSet
	Deals    []repository.Deal
	Contacts []repository.Contact

	doc document
}

// LoadFile reads and decodes the dataset at path.
func LoadFile(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(ctx, f)
}

// Load validates r against the embedded schema and decodes it into an arena.
// Shape problems wrap ErrSchema; semantic problems are *model.InputError.
// Licenses not named by any group each become a single-license group.
func Load(ctx context.Context, r io.Reader) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	d := &Dataset{Arena: &model.Arena{}, doc: doc}
	byID, err := d.decodeLicenses(doc.Licenses)
	if err != nil {
		return nil, err
	}
	txByLicense, err := d.decodeTransactions(doc.Transactions, byID)
	if err != nil {
		return nil, err
	}
	if err := d.resolveGroups(doc.Groups, byID, txByLicense); err != nil {
		return nil, err
	}
	if d.Deals, err = decodeDeals(doc.Deals); err != nil {
		return nil, err
	}
	if d.Contacts, err = decodeContacts(doc.Contacts); err != nil {
		return nil, err
	}

	logger.Named("dataset").Info(ctx, "dataset loaded",
		logger.Int("licenses", len(d.Arena.Licenses)),
		logger.Int("transactions", len(d.Arena.Transactions)),
		logger.Int("groups", len(d.Groups)),
		logger.Int("deals", len(d.Deals)),
		logger.Int("contacts", len(d.Contacts)))
	return d, nil
}

func validate(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile dataset schema: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func parseDate(record, field, s string, required bool) (time.Time, error) {
	if s == "" {
		if required {
			return time.Time{}, &model.InputError{Record: record, Reason: "missing " + field}
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &model.InputError{Record: record, Reason: fmt.Sprintf("malformed %s %q", field, s)}
	}
	return t, nil
}

func decodeContactRefs(record string, refs []contactRefDoc) ([]model.ContactRef, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]model.ContactRef, len(refs))
	for i, c := range refs {
		role, err := model.ParseContactRole(c.Role)
		if err != nil {
			return nil, &model.InputError{Record: record, Reason: err.Error()}
		}
		out[i] = model.ContactRef{Email: c.Email, Role: role}
	}
	return out, nil
}

func (d *Dataset) decodeLicenses(docs []licenseDoc) (map[string]model.LicenseID, error) {
	byID := make(map[string]model.LicenseID, len(docs))
	for _, l := range docs {
		if _, dup := byID[l.ID]; dup {
			return nil, &model.InputError{Record: l.ID, Reason: "duplicate license id"}
		}
		hosting, err := model.ParseHosting(l.Hosting)
		if err != nil {
			return nil, &model.InputError{Record: l.ID, Reason: err.Error()}
		}
		status, err := model.ParseLicenseStatus(l.Status)
		if err != nil {
			return nil, &model.InputError{Record: l.ID, Reason: err.Error()}
		}
		start, err := parseDate(l.ID, "maintenance start", l.MaintenanceStart, true)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(l.ID, "maintenance end", l.MaintenanceEnd, false)
		if err != nil {
			return nil, err
		}
		contacts, err := decodeContactRefs(l.ID, l.Contacts)
		if err != nil {
			return nil, err
		}
		byID[l.ID] = d.Arena.AddLicense(model.License{
			SourceID:         l.ID,
			AddonKey:         l.AddonKey,
			Tier:             l.Tier,
			Hosting:          hosting,
			Status:           status,
			MaintenanceStart: start,
			MaintenanceEnd:   end,
			Evaluation:       l.Evaluation,
			Sandbox:          l.Sandbox,
			Partner:          l.Partner,
			Contacts:         contacts,
		})
	}
	return byID, nil
}

func (d *Dataset) decodeTransactions(docs []transactionDoc, licenses map[string]model.LicenseID) (map[model.LicenseID][]model.TransactionID, error) {
	seen := make(map[string]bool, len(docs))
	byLicense := make(map[model.LicenseID][]model.TransactionID)
	for _, t := range docs {
		if seen[t.ID] {
			return nil, &model.InputError{Record: t.ID, Reason: "duplicate transaction id"}
		}
		seen[t.ID] = true

		lid, ok := licenses[t.LicenseID]
		if !ok {
			return nil, &model.InputError{Record: t.ID, Reason: fmt.Sprintf("unknown license %q", t.LicenseID)}
		}
		saleType, err := model.ParseSaleType(t.SaleType)
		if err != nil {
			return nil, &model.InputError{Record: t.ID, Reason: err.Error()}
		}
		hosting := d.Arena.License(lid).Hosting
		if t.Hosting != "" {
			if hosting, err = model.ParseHosting(t.Hosting); err != nil {
				return nil, &model.InputError{Record: t.ID, Reason: err.Error()}
			}
		}
		date, err := parseDate(t.ID, "sale date", t.SaleDate, true)
		if err != nil {
			return nil, err
		}
		contacts, err := decodeContactRefs(t.ID, t.Contacts)
		if err != nil {
			return nil, err
		}
		tid := d.Arena.AddTransaction(model.Transaction{
			SourceID:     t.ID,
			License:      lid,
			SaleDate:     date,
			SaleType:     saleType,
			Tier:         t.Tier,
			Hosting:      hosting,
			VendorAmount: t.VendorAmount,
			Partner:      t.Partner,
			Contacts:     contacts,
		})
		byLicense[lid] = append(byLicense[lid], tid)
	}
	return byLicense, nil
}

func (d *Dataset) resolveGroups(groups [][]string, licenses map[string]model.LicenseID, txs map[model.LicenseID][]model.TransactionID) error {
	grouped := make(map[model.LicenseID]bool, len(licenses))
	attach := func(lid model.LicenseID) model.LicenseContext {
		grouped[lid] = true
		return model.LicenseContext{License: lid, Transactions: txs[lid]}
	}

	for i, ids := range groups {
		var set model.RelatedLicenseSet
		for _, id := range ids {
			lid, ok := licenses[id]
			if !ok {
				return &model.InputError{Group: fmt.Sprintf("#%d", i), Record: id, Reason: "group names an unknown license"}
			}
			set.Contexts = append(set.Contexts, attach(lid))
		}
		d.Groups = append(d.Groups, set)
	}
	for lid := range d.Arena.Licenses {
		if !grouped[model.LicenseID(lid)] {
			d.Groups = append(d.Groups, model.RelatedLicenseSet{Contexts: []model.LicenseContext{attach(model.LicenseID(lid))}})
		}
	}
	return nil
}

func decodeDeals(docs []dealDoc) ([]repository.Deal, error) {
	out := make([]repository.Deal, 0, len(docs))
	for _, dd := range docs {
		stage, err := actions.ParseStage(dd.Stage)
		if err != nil {
			return nil, &model.InputError{Record: dd.ID, Reason: err.Error()}
		}
		closeDate, err := parseDate(dd.ID, "close date", dd.CloseDate, false)
		if err != nil {
			return nil, err
		}
		var hosting model.Hosting
		if dd.Hosting != "" {
			if hosting, err = model.ParseHosting(dd.Hosting); err != nil {
				return nil, &model.InputError{Record: dd.ID, Reason: err.Error()}
			}
		}
		out = append(out, repository.Deal{
			Ref: actions.DealRef(dd.ID),
			Properties: actions.Properties{
				Name:           dd.Name,
				AddonKey:       dd.AddonKey,
				Stage:          stage,
				Amount:         dd.Amount,
				CloseDate:      closeDate,
				Tier:           dd.Tier,
				Hosting:        hosting,
				LicenseIDs:     dd.LicenseIDs,
				TransactionIDs: dd.TransactionIDs,
			},
			Contacts:  dd.Contacts,
			Companies: dd.Companies,
			Partner:   dd.Partner,
		})
	}
	return out, nil
}

func decodeContacts(docs []contactDoc) ([]repository.Contact, error) {
	out := make([]repository.Contact, 0, len(docs))
	for _, c := range docs {
		kind := repository.ContactCustomer
		if c.Type == "partner" {
			kind = repository.ContactPartner
		}
		out = append(out, repository.Contact{Email: c.Email, OtherEmails: c.OtherEmails, Kind: kind, Company: c.Company})
	}
	return out, nil
}
