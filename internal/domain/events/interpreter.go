package events

import (
	"fmt"
	"time"

	"github.com/okian/dealsync/internal/domain/ignored"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/domain/timeline"
	"github.com/shopspring/decimal"
)

// Option applies a configuration option to the Interpreter.
type Option func(*Interpreter)

// WithMinAmount sets the threshold at or below which non-refund sales are ignored.
func WithMinAmount(amount decimal.Decimal) Option {
	return func(in *Interpreter) {
		if !amount.IsNegative() {
			in.minAmount = amount
		}
	}
}

// Interpreter classifies timeline entries into events. It holds no per-run
// state and is safe for concurrent use.
type Interpreter struct {
	minAmount decimal.Decimal
}

// New creates an Interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{minAmount: decimal.Zero}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Result is the outcome of one walk.
type Result struct {
	Events []Event
	State  State
}

// Interpret walks entries once. Every input record ends up either in exactly one
// event's Records or as exactly one entry in ig. Malformed records abort the walk
// with a *model.InputError.
func (in *Interpreter) Interpret(a *model.Arena, entries []timeline.Entry, ig *ignored.List) (Result, error) {
	w := &walk{
		arena:     a,
		ignored:   ig,
		minAmount: in.minAmount,
		lastSale:  make(map[model.LicenseID]time.Time),
		hasSales:  make(map[model.LicenseID]bool),
	}
	for _, e := range entries {
		if e.Kind == timeline.TransactionSale {
			w.hasSales[e.License] = true
			if e.Date.After(w.lastSale[e.License]) {
				w.lastSale[e.License] = e.Date
			}
		}
	}

	for _, e := range entries {
		if e.Date.IsZero() {
			return Result{}, &model.InputError{Record: e.SourceID, Reason: "missing " + e.Kind.String() + " date"}
		}
		var err error
		switch e.Kind {
		case timeline.LicenseStart:
			w.licenseStart(e)
		case timeline.LicenseEnd:
			w.licenseEnd(e)
		case timeline.TransactionSale:
			err = w.transaction(e)
		default:
			err = &model.InputError{Record: e.SourceID, Reason: fmt.Sprintf("unknown timeline entry kind %d", e.Kind)}
		}
		if err != nil {
			return Result{}, err
		}
	}
	w.flushPending()

	return Result{Events: w.events, State: w.state}, nil
}

type walk struct {
	arena     *model.Arena
	ignored   *ignored.List
	minAmount decimal.Decimal

	state   State
	events  []Event
	pending []model.RecordRef

	// latest sale date and presence of sales per license, precomputed
	lastSale map[model.LicenseID]time.Time
	hasSales map[model.LicenseID]bool
}

func (w *walk) emit(e Event) {
	if len(e.Records) > 0 && len(w.pending) > 0 {
		e.Records = append(w.pending, e.Records...)
		w.pending = nil
	}
	w.events = append(w.events, e)
}

func (w *walk) ignore(ref model.RecordRef, reason, details string, amount decimal.Decimal) {
	w.ignored.Record(ref, w.arena.SourceID(ref), reason, details, amount)
}

func (w *walk) licenseStart(e timeline.Entry) {
	l := w.arena.License(e.License)
	ref := model.LicenseRef(e.License)

	switch {
	case l.Evaluation && w.state.Status == StatusNone:
		w.state.Status = StatusTrial
		w.state.Tier = l.Tier
		w.state.Hosting = l.Hosting
		w.state.touch(e.License)
		w.emit(Event{
			Kind:    EvalStarted,
			Date:    e.Date,
			License: e.License,
			Records: []model.RecordRef{ref},
			Tier:    l.Tier,
			Hosting: l.Hosting,
			Amount:  decimal.Zero,
			Partner: l.Partner,
		})

	case l.Evaluation:
		w.ignore(ref, ignored.ReasonDuplicateEval, "evaluation license while track is "+w.state.Status.String(), decimal.Zero)

	case l.Sandbox && w.state.Status != StatusNone:
		w.ignore(ref, ignored.ReasonDuplicateSandbox, "sandbox license while track is "+w.state.Status.String(), decimal.Zero)

	case w.state.Status == StatusInactive && w.state.EverPaid:
		// Only a track that was paid before can be reinstated; a lapsed
		// trial converts through its purchase.
		w.state.Status = StatusActive
		w.state.Tier = l.Tier
		w.state.touch(e.License)
		w.emit(Event{
			Kind:    LicenseReinstated,
			Date:    e.Date,
			License: e.License,
			Records: []model.RecordRef{ref},
			Tier:    l.Tier,
			Hosting: l.Hosting,
			Amount:  decimal.Zero,
			Partner: l.Partner,
		})

	case !w.hasSales[e.License]:
		w.ignore(ref, ignored.ReasonNoTransactions, fmt.Sprintf("%s license without sales", l.Hosting), decimal.Zero)

	default:
		// A paid license is represented by its sales; it rides along with the next event.
		w.state.touch(e.License)
		w.pending = append(w.pending, ref)
	}
}

func (w *walk) licenseEnd(e timeline.Entry) {
	l := w.arena.License(e.License)
	if last, ok := w.lastSale[e.License]; ok && !last.Before(l.MaintenanceEnd) {
		return
	}
	current := w.state.HasCurrent && w.state.Current == e.License

	switch {
	case current && (w.state.Status == StatusTrial || w.state.Status == StatusActive):
		w.state.Status = StatusInactive
		w.emit(Event{
			Kind:    LicenseLapsed,
			Date:    e.Date,
			License: e.License,
			Tier:    l.Tier,
			Hosting: l.Hosting,
			Amount:  decimal.Zero,
			Partner: l.Partner,
		})

	case l.Evaluation && w.state.Status == StatusActive:
		w.emit(Event{
			Kind:    EvalEnded,
			Date:    e.Date,
			License: e.License,
			Tier:    l.Tier,
			Hosting: l.Hosting,
			Amount:  decimal.Zero,
			Partner: l.Partner,
		})
	}
}

func (w *walk) transaction(e timeline.Entry) error {
	t := w.arena.Transaction(e.Transaction)
	ref := model.TransactionRef(e.Transaction)

	if t.SaleType == 0 {
		return &model.InputError{Record: t.SourceID, Reason: "missing sale type"}
	}

	base := Event{
		Date:    e.Date,
		License: t.License,
		Records: []model.RecordRef{ref},
		Tier:    t.Tier,
		Hosting: t.Hosting,
		Amount:  t.VendorAmount,
		Partner: t.Partner,
	}

	switch {
	case t.SaleType == model.SaleRefund:
		amount := t.VendorAmount.Abs().Neg()
		w.state.book(amount)
		w.state.Refunded = w.state.Refunded.Add(amount.Abs())
		w.state.sold(e.Transaction, t)
		base.Kind = RefundedLicense
		base.Amount = amount
		w.emit(base)

	case t.VendorAmount.LessThanOrEqual(w.minAmount):
		reason := ignored.ReasonBelowThreshold
		if t.VendorAmount.IsZero() {
			reason = ignored.ReasonZeroAmount
		}
		details := fmt.Sprintf("%s sale of %s at or below %s", t.SaleType, t.VendorAmount.StringFixed(2), w.minAmount.StringFixed(2))
		w.ignore(ref, reason, details, t.VendorAmount)

	case w.state.HasPaid && (t.Tier != w.state.PaidTier || t.SaleType == model.SaleUpgrade || t.SaleType == model.SaleDowngrade):
		// A lower tier is still reported as an upgrade, with a negative delta.
		base.Kind = UpgradedLicense
		base.TierDelta = t.Tier - w.state.PaidTier
		w.paid(e, t, base)

	case !w.state.HasPaid && t.SaleType != model.SaleRenewal:
		base.Kind = PurchasedLicense
		w.paid(e, t, base)

	case t.SaleType == model.SaleRenewal || w.movedLicense(t):
		base.Kind = RenewedLicense
		w.paid(e, t, base)

	default:
		w.ignore(ref, ignored.ReasonRepeatPurchase,
			fmt.Sprintf("%s sale on a paid track at unchanged tier %d", t.SaleType, t.Tier), t.VendorAmount)
	}
	return nil
}

// movedLicense reports a sale continuing a paid track on a different license,
// e.g. after a hosting migration or a reinstatement.
func (w *walk) movedLicense(t *model.Transaction) bool {
	if !w.state.HasPaid || !w.state.HasTransaction {
		return false
	}
	return w.arena.Transaction(w.state.LastTransaction).License != t.License
}

func (w *walk) paid(e timeline.Entry, t *model.Transaction, ev Event) {
	w.state.book(t.VendorAmount)
	w.state.Status = StatusActive
	w.state.Tier = t.Tier
	w.state.PaidTier = t.Tier
	w.state.sold(e.Transaction, t)
	w.emit(ev)
}

// flushPending attaches leftover paid licenses to the last triggered event,
// or ignores them when the track produced none.
func (w *walk) flushPending() {
	if len(w.pending) == 0 {
		return
	}
	for i := len(w.events) - 1; i >= 0; i-- {
		if len(w.events[i].Records) > 0 {
			w.events[i].Records = append(w.events[i].Records, w.pending...)
			w.pending = nil
			return
		}
	}
	for _, ref := range w.pending {
		w.ignore(ref, ignored.ReasonNoEvents, "paid license whose sales produced no events", decimal.Zero)
	}
	w.pending = nil
}
