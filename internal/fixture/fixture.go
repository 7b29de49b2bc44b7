// Package fixture turns one group of a real dataset into a redacted,
// self-contained regression case: a YAML file holding the records and the
// events and actions they produce today, and a GoConvey test that replays it.
package fixture

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/dealsync/internal/adapters/inspection"
	service "github.com/okian/dealsync/internal/app"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/internal/domain/events"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Planner plans a single group.
type Planner interface {
	GenerateForGroup(ctx context.Context, a *model.Arena, set model.RelatedLicenseSet) (*service.Plan, error)
}

// Contact is a redacted contact reference.
type Contact struct {
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

// Transaction is a redacted transaction.
type Transaction struct {
	ID       string    `yaml:"id"`
	SaleDate string    `yaml:"saleDate"`
	SaleType string    `yaml:"saleType"`
	Tier     int       `yaml:"tier"`
	Hosting  string    `yaml:"hosting"`
	Amount   string    `yaml:"amount"`
	Partner  string    `yaml:"partner,omitempty"`
	Contacts []Contact `yaml:"contacts,omitempty"`
}

// License is a redacted license with its transactions.
type License struct {
	ID               string        `yaml:"id"`
	AddonKey         string        `yaml:"addonKey"`
	Tier             int           `yaml:"tier"`
	Hosting          string        `yaml:"hosting"`
	Status           string        `yaml:"status"`
	MaintenanceStart string        `yaml:"maintenanceStart"`
	MaintenanceEnd   string        `yaml:"maintenanceEnd,omitempty"`
	Evaluation       bool          `yaml:"evaluation,omitempty"`
	Sandbox          bool          `yaml:"sandbox,omitempty"`
	Partner          string        `yaml:"partner,omitempty"`
	Contacts         []Contact     `yaml:"contacts,omitempty"`
	Transactions     []Transaction `yaml:"transactions,omitempty"`
}

// Fixture is one recorded group.
type Fixture struct {
	TestID  string                 `yaml:"testId"`
	Group   []License              `yaml:"group"`
	Events  []inspection.EventRow  `yaml:"events"`
	Actions []inspection.ActionRow `yaml:"actions"`
}

// Extract rebuilds the group named by testID from a, redacts it and records
// what planner makes of it.
func Extract(ctx context.Context, a *model.Arena, testID string, planner Planner) (*Fixture, error) {
	entries, err := model.DecodeTestID(testID)
	if err != nil {
		return nil, err
	}

	licenses := make(map[string]model.LicenseID, len(a.Licenses))
	for i := range a.Licenses {
		licenses[a.Licenses[i].SourceID] = model.LicenseID(i)
	}
	transactions := make(map[string]model.TransactionID, len(a.Transactions))
	for i := range a.Transactions {
		transactions[a.Transactions[i].SourceID] = model.TransactionID(i)
	}

	r := newRedactor()
	f := &Fixture{TestID: testID}
	for _, e := range entries {
		lid, ok := licenses[e.License]
		if !ok {
			return nil, &model.InputError{Group: testID, Record: e.License, Reason: "license not in dataset"}
		}
		l := r.license(a.License(lid))
		for _, id := range e.Transactions {
			tid, ok := transactions[id]
			if !ok {
				return nil, &model.InputError{Group: testID, Record: id, Reason: "transaction not in dataset"}
			}
			l.Transactions = append(l.Transactions, r.transaction(a.Transaction(tid)))
		}
		f.Group = append(f.Group, l)
	}

	arena, set, err := f.Build()
	if err != nil {
		return nil, err
	}
	plan, err := planner.GenerateForGroup(ctx, arena, set)
	if err != nil {
		return nil, fmt.Errorf("plan group %s: %w", testID, err)
	}
	f.Events = Events(arena, plan.Events)
	f.Actions = Actions(plan.Actions)
	return f, nil
}

// Build decodes the fixture's records into a fresh arena.
func (f *Fixture) Build() (*model.Arena, model.RelatedLicenseSet, error) {
	a := &model.Arena{}
	var set model.RelatedLicenseSet
	for _, l := range f.Group {
		lic, err := l.decode()
		if err != nil {
			return nil, set, err
		}
		lid := a.AddLicense(lic)
		ctx := model.LicenseContext{License: lid}
		for _, t := range l.Transactions {
			tx, err := t.decode(lid)
			if err != nil {
				return nil, set, err
			}
			ctx.Transactions = append(ctx.Transactions, a.AddTransaction(tx))
		}
		set.Contexts = append(set.Contexts, ctx)
	}
	return a, set, nil
}

// Events abbreviates events the way fixtures store them.
func Events(a *model.Arena, evs []events.Event) []inspection.EventRow {
	out := make([]inspection.EventRow, len(evs))
	for i, e := range evs {
		out[i] = inspection.AbbrEvent(a, e)
	}
	return out
}

// Actions abbreviates actions the way fixtures store them.
func Actions(acts []actions.Action) []inspection.ActionRow {
	out := make([]inspection.ActionRow, len(acts))
	for i, act := range acts {
		out[i] = inspection.AbbrAction(act)
	}
	return out
}

// Write encodes the fixture as YAML.
func (f *Fixture) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}

// Load decodes a fixture written by Write.
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// LoadFile reads the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

func parseDay(record, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, &model.InputError{Record: record, Reason: fmt.Sprintf("malformed date %q", s)}
	}
	return t, nil
}

func decodeContacts(record string, cs []Contact) ([]model.ContactRef, error) {
	var out []model.ContactRef
	for _, c := range cs {
		role, err := model.ParseContactRole(c.Role)
		if err != nil {
			return nil, &model.InputError{Record: record, Reason: err.Error()}
		}
		out = append(out, model.ContactRef{Email: c.Email, Role: role})
	}
	return out, nil
}

func (l License) decode() (model.License, error) {
	hosting, err := model.ParseHosting(l.Hosting)
	if err != nil {
		return model.License{}, &model.InputError{Record: l.ID, Reason: err.Error()}
	}
	status, err := model.ParseLicenseStatus(l.Status)
	if err != nil {
		return model.License{}, &model.InputError{Record: l.ID, Reason: err.Error()}
	}
	start, err := parseDay(l.ID, l.MaintenanceStart)
	if err != nil {
		return model.License{}, err
	}
	end, err := parseDay(l.ID, l.MaintenanceEnd)
	if err != nil {
		return model.License{}, err
	}
	contacts, err := decodeContacts(l.ID, l.Contacts)
	if err != nil {
		return model.License{}, err
	}
	return model.License{
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
	}, nil
}

func (t Transaction) decode(lid model.LicenseID) (model.Transaction, error) {
	saleType, err := model.ParseSaleType(t.SaleType)
	if err != nil {
		return model.Transaction{}, &model.InputError{Record: t.ID, Reason: err.Error()}
	}
	hosting, err := model.ParseHosting(t.Hosting)
	if err != nil {
		return model.Transaction{}, &model.InputError{Record: t.ID, Reason: err.Error()}
	}
	date, err := parseDay(t.ID, t.SaleDate)
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return model.Transaction{}, &model.InputError{Record: t.ID, Reason: fmt.Sprintf("malformed amount %q", t.Amount)}
	}
	contacts, err := decodeContacts(t.ID, t.Contacts)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		SourceID:     t.ID,
		License:      lid,
		SaleDate:     date,
		SaleType:     saleType,
		Tier:         t.Tier,
		Hosting:      hosting,
		VendorAmount: amount,
		Partner:      t.Partner,
		Contacts:     contacts,
	}, nil
}
