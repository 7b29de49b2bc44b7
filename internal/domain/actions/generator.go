package actions

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/dealsync/internal/domain/events"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/shopspring/decimal"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithTrialDeals makes evaluations open a deal in the evaluation stage.
// A never-paid track that lapses then closes it as lost.
func WithTrialDeals(enabled bool) Option {
	return func(g *Generator) {
		g.trialDeals = enabled
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// Generator turns an event sequence into deal actions. Safe for concurrent use.
type Generator struct {
	trialDeals bool
	log        logger.Logger
}

// New creates a Generator. Without WithLogger it uses the global "actions" logger.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Named("actions")
	}
	return g
}

// Generate plans the actions for one group.
//
// Without a registered deal, the first deal-opening event creates one and each
// later event that changes the desired properties updates it. With a registered
// deal, the whole sequence is folded and compared against the stored properties,
// so a re-run after applying yields nothing. More than one registered deal for
// the group's licenses is an *model.InvariantError and no actions are planned.
func (g *Generator) Generate(ctx context.Context, a *model.Arena, group string, set model.RelatedLicenseSet, evs []events.Event, reg Registry) ([]Action, error) {
	ref, found, err := g.existing(ctx, a, group, set, reg)
	if err != nil {
		return nil, err
	}

	f := &fold{arena: a, trialDeals: g.trialDeals}
	if found {
		return g.reconcile(ctx, group, ref, f, evs, reg)
	}

	var out []Action
	for _, e := range evs {
		before, had := f.props.Clone(), f.open
		f.apply(e)
		switch {
		case !had && f.open:
			out = append(out, Action{Kind: CreateDeal, Properties: f.props.Clone(), Trigger: e.Kind, Date: e.Date})
		case had:
			if changes := f.props.Diff(before); len(changes) > 0 {
				out = append(out, Action{Kind: UpdateDeal, Properties: f.props.Clone(), Changes: changes, Trigger: e.Kind, Date: e.Date})
			}
		}
	}
	g.log.Debug(ctx, "actions planned",
		logger.String("group", group),
		logger.Int("events", len(evs)),
		logger.Int("actions", len(out)))
	return out, nil
}

func (g *Generator) reconcile(ctx context.Context, group string, ref DealRef, f *fold, evs []events.Event, reg Registry) ([]Action, error) {
	for _, e := range evs {
		f.apply(e)
	}
	if !f.open || len(evs) == 0 {
		return nil, nil
	}
	current, err := reg.Current(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load deal %s: %w", ref, err)
	}
	// The name is only chosen on creation; CRM users may rename deals.
	f.props.Name = current.Name

	changes := f.props.Diff(current)
	if len(changes) == 0 {
		g.log.Debug(ctx, "deal up to date", logger.String("group", group), logger.String("deal", string(ref)))
		return nil, nil
	}
	last := evs[len(evs)-1]
	return []Action{{
		Kind:       UpdateDeal,
		Deal:       ref,
		Properties: f.props.Clone(),
		Changes:    changes,
		Trigger:    last.Kind,
		Date:       last.Date,
	}}, nil
}

// existing finds the single deal owning any license of the set.
func (g *Generator) existing(ctx context.Context, a *model.Arena, group string, set model.RelatedLicenseSet, reg Registry) (DealRef, bool, error) {
	var refs []DealRef
	for _, lid := range set.LicenseIDs() {
		ref, ok, err := reg.Lookup(ctx, a.License(lid).SourceID)
		if err != nil {
			return "", false, fmt.Errorf("lookup deal for license %s: %w", a.License(lid).SourceID, err)
		}
		if ok && !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	}
	switch len(refs) {
	case 0:
		return "", false, nil
	case 1:
		return refs[0], true, nil
	default:
		names := make([]string, len(refs))
		for i, r := range refs {
			names[i] = string(r)
		}
		slices.Sort(names)
		return "", false, &model.InvariantError{
			Group:  group,
			Deal:   strings.Join(names, ","),
			Reason: fmt.Sprintf("%d deals claim one license track", len(refs)),
		}
	}
}

// fold is the desired deal state after each event.
type fold struct {
	arena      *model.Arena
	trialDeals bool

	props Properties
	open  bool
	// refunds booked before the deal opened, netted in on start
	pending decimal.Decimal

	licenses     []string
	transactions []string
}

func (f *fold) apply(e events.Event) {
	f.track(e)

	switch e.Kind {
	case events.EvalStarted:
		if f.trialDeals && !f.open {
			f.start(e, StageEvaluation)
		}

	case events.PurchasedLicense, events.RenewedLicense, events.UpgradedLicense:
		if !f.open {
			f.start(e, StageClosedWon)
			f.props.Amount = f.props.Amount.Add(e.Amount)
			if !f.props.Amount.IsPositive() {
				f.props.Stage = StageRefunded
			}
			break
		}
		f.props.Stage = StageClosedWon
		f.props.Amount = f.props.Amount.Add(e.Amount)
		f.props.CloseDate = e.Date
		f.props.Tier = e.Tier
		f.props.Hosting = e.Hosting

	case events.RefundedLicense:
		if !f.open {
			f.pending = f.pending.Add(e.Amount)
			break
		}
		f.props.Amount = f.props.Amount.Add(e.Amount)
		if !f.props.Amount.IsPositive() {
			f.props.Stage = StageRefunded
		}

	case events.LicenseLapsed:
		if f.open && f.props.Stage == StageEvaluation {
			f.props.Stage = StageClosedLost
			f.props.CloseDate = e.Date
		}

	case events.EvalEnded, events.LicenseReinstated:
	}

	if f.open {
		f.props.LicenseIDs = slices.Clone(f.licenses)
		f.props.TransactionIDs = slices.Clone(f.transactions)
	}
}

func (f *fold) start(e events.Event, stage Stage) {
	l := f.arena.License(e.License)
	f.open = true
	f.props = Properties{
		Name:      fmt.Sprintf("%s (%s)", l.AddonKey, l.SourceID),
		AddonKey:  l.AddonKey,
		Stage:     stage,
		Amount:    f.pending,
		CloseDate: e.Date,
		Tier:      e.Tier,
		Hosting:   e.Hosting,
	}
	f.pending = decimal.Zero
}

// track adds the event's records to the sorted id lists.
func (f *fold) track(e events.Event) {
	for _, r := range e.Records {
		id := f.arena.SourceID(r)
		if r.Kind == model.KindLicense {
			f.licenses = insertSorted(f.licenses, id)
		} else {
			f.transactions = insertSorted(f.transactions, id)
		}
	}
}

func insertSorted(ids []string, id string) []string {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}
