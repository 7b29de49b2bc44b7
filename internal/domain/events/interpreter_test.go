package events_test

import (
	"errors"
	"testing"

	"github.com/okian/dealsync/internal/domain/events"
	"github.com/okian/dealsync/internal/domain/ignored"
	"github.com/okian/dealsync/internal/domain/model"
	mt "github.com/okian/dealsync/internal/domain/model/modeltest"
	"github.com/okian/dealsync/internal/domain/timeline"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func interpret(b *mt.Builder, opts ...events.Option) (events.Result, *ignored.List, error) {
	var ig ignored.List
	res, err := events.New(opts...).Interpret(b.Arena, timeline.Build(b.Arena, b.Set()), &ig)
	return res, &ig, err
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

func TestInterpretScenarios(t *testing.T) {
	Convey("Given an evaluation that expires without a purchase", t, func() {
		b := mt.NewBuilder()
		b.License("L1", "2021-01-01", 10, mt.Eval(), mt.Inactive("2021-01-15"))

		res, ig, err := interpret(b)

		Convey("Then it starts and lapses", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.EvalStarted, events.LicenseLapsed})
			So(res.Events[0].Date, ShouldEqual, mt.Day("2021-01-01"))
			So(res.Events[1].Date, ShouldEqual, mt.Day("2021-01-15"))
			So(res.Events[1].Records, ShouldBeEmpty)
			So(ig.Len(), ShouldEqual, 0)
			So(res.State.Status, ShouldEqual, events.StatusInactive)
			So(res.State.HasPaid, ShouldBeFalse)
		})
	})

	Convey("Given a purchase followed by a renewal", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		t1 := b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		t2 := b.Sale(l, "T2", model.SaleRenewal, "2022-01-01", 10, "100")

		res, ig, err := interpret(b)

		Convey("Then it purchases then renews", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.PurchasedLicense, events.RenewedLicense})
			So(res.Events[0].Amount.Equal(decimal.NewFromInt(100)), ShouldBeTrue)
			So(res.Events[1].Amount.Equal(decimal.NewFromInt(100)), ShouldBeTrue)
			So(res.Events[1].Date, ShouldEqual, mt.Day("2022-01-01"))
			So(ig.Len(), ShouldEqual, 0)
		})

		Convey("And the paid license rides along with the purchase", func() {
			So(res.Events[0].Records, ShouldResemble, []model.RecordRef{model.LicenseRef(l), model.TransactionRef(t1)})
			So(res.Events[1].Records, ShouldResemble, []model.RecordRef{model.TransactionRef(t2)})
			tid, ok := res.Events[1].Transaction()
			So(ok, ShouldBeTrue)
			So(tid, ShouldEqual, t2)
		})
	})

	Convey("Given a purchase that is refunded", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		b.Sale(l, "T2", model.SaleRefund, "2021-02-01", 10, "-100")

		res, _, err := interpret(b)

		Convey("Then the refund carries a non-positive amount and clears the paid flag", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.PurchasedLicense, events.RefundedLicense})
			So(res.Events[1].Amount.Equal(decimal.NewFromInt(-100)), ShouldBeTrue)
			So(res.State.HasPaid, ShouldBeFalse)
			So(res.State.Paid.IsZero(), ShouldBeTrue)
			So(res.State.Refunded.Equal(decimal.NewFromInt(100)), ShouldBeTrue)
		})
	})

	Convey("Given a refund reported with a positive amount", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "80")
		b.Sale(l, "T2", model.SaleRefund, "2021-02-01", 10, "30")

		res, _, err := interpret(b)

		Convey("Then the sign is normalised", func() {
			So(err, ShouldBeNil)
			So(res.Events[1].Amount.Equal(decimal.NewFromInt(-30)), ShouldBeTrue)
			So(res.State.Paid.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			So(res.State.HasPaid, ShouldBeTrue)
		})
	})

	Convey("Given a zero-amount new sale", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		tx := b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "0")

		res, ig, err := interpret(b)

		Convey("Then no event is produced and the sale is ignored", func() {
			So(err, ShouldBeNil)
			So(res.Events, ShouldBeEmpty)

			var txEntries []ignored.Entry
			for _, e := range ig.Entries() {
				if e.Record.Kind == model.KindTransaction {
					txEntries = append(txEntries, e)
				}
			}
			So(len(txEntries), ShouldEqual, 1)
			So(txEntries[0].Record, ShouldResemble, model.TransactionRef(tx))
			So(txEntries[0].Reason, ShouldEqual, ignored.ReasonZeroAmount)
			So(txEntries[0].Amount.IsZero(), ShouldBeTrue)

			totals := ignored.NewTotals()
			totals.Merge(ig)
			So(totals.Amount(ignored.ReasonZeroAmount).IsZero(), ShouldBeTrue)
		})
	})
}

func TestInterpretTierChanges(t *testing.T) {
	Convey("Given a paid track whose tier grows", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		b.Sale(l, "T2", model.SaleUpgrade, "2021-06-01", 25, "150")

		res, _, err := interpret(b)

		Convey("Then it is an upgrade with a positive delta", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.PurchasedLicense, events.UpgradedLicense})
			So(res.Events[1].TierDelta, ShouldEqual, 15)
			So(res.State.PaidTier, ShouldEqual, 25)
		})
	})

	Convey("Given a renewal at a lower tier", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 25)
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 25, "250")
		b.Sale(l, "T2", model.SaleRenewal, "2022-01-01", 10, "100")

		res, _, err := interpret(b)

		Convey("Then it is still recorded as an upgrade, with a negative delta", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.PurchasedLicense, events.UpgradedLicense})
			So(res.Events[1].TierDelta, ShouldEqual, -15)
			So(res.Events[1].Tier, ShouldEqual, 10)
		})
	})
}

func TestInterpretExclusions(t *testing.T) {
	Convey("Given a track with redundant licenses and sales", t, func() {
		b := mt.NewBuilder()
		eval := b.License("L1", "2021-01-01", 10, mt.Eval())
		b.License("L2", "2021-01-05", 10, mt.Eval())
		paid := b.License("L3", "2021-01-10", 10)
		b.License("L4", "2021-01-11", 10, mt.Sandbox())
		b.License("L5", "2020-12-01", 10)
		b.Sale(paid, "T1", model.SaleNew, "2021-01-10", 10, "100")
		b.Sale(paid, "T2", model.SaleNew, "2021-03-01", 10, "100")
		b.Sale(paid, "T3", model.SaleRenewal, "2021-04-01", 10, "5")

		res, ig, err := interpret(b, events.WithMinAmount(decimal.NewFromInt(10)))
		So(err, ShouldBeNil)

		reasons := map[string]string{}
		for _, e := range ig.Entries() {
			reasons[e.SourceID] = e.Reason
		}

		Convey("Then each exclusion carries its reason", func() {
			So(reasons["L2"], ShouldEqual, ignored.ReasonDuplicateEval)
			So(reasons["L4"], ShouldEqual, ignored.ReasonDuplicateSandbox)
			So(reasons["L5"], ShouldEqual, ignored.ReasonNoTransactions)
			So(reasons["T2"], ShouldEqual, ignored.ReasonRepeatPurchase)
			So(reasons["T3"], ShouldEqual, ignored.ReasonBelowThreshold)
			So(len(reasons), ShouldEqual, 5)
		})

		Convey("And the evaluation converts into a purchase", func() {
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.EvalStarted, events.PurchasedLicense})
			So(res.Events[0].Records, ShouldResemble, []model.RecordRef{model.LicenseRef(eval)})
		})
	})

	Convey("Given an evaluation that expires after conversion", t, func() {
		b := mt.NewBuilder()
		b.License("L1", "2021-01-01", 10, mt.Eval(), mt.Inactive("2021-02-01"))
		paid := b.License("L2", "2021-01-15", 10)
		b.Sale(paid, "T1", model.SaleNew, "2021-01-15", 10, "100")

		res, _, err := interpret(b)

		Convey("Then the expiry is an eval-ended event, not a lapse", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.EvalStarted, events.PurchasedLicense, events.EvalEnded})
			So(res.State.Status, ShouldEqual, events.StatusActive)
		})
	})

	Convey("Given a paid license that lapses and a new license later", t, func() {
		b := mt.NewBuilder()
		first := b.License("L1", "2021-01-01", 10, mt.Inactive("2022-01-01"))
		b.Sale(first, "T1", model.SaleNew, "2021-01-01", 10, "100")
		second := b.License("L2", "2022-06-01", 10)
		b.Sale(second, "T2", model.SaleNew, "2022-06-01", 10, "100")

		res, ig, err := interpret(b)

		Convey("Then the track lapses, is reinstated and renews on the new license", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{
				events.PurchasedLicense,
				events.LicenseLapsed,
				events.LicenseReinstated,
				events.RenewedLicense,
			})
			So(ig.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a trial that lapses and converts on a new paid license", t, func() {
		b := mt.NewBuilder()
		b.License("E1", "2021-01-01", 10, mt.Eval(), mt.Inactive("2021-01-15"))
		paid := b.License("L1", "2021-02-01", 10)
		sale := b.Sale(paid, "T1", model.SaleNew, "2021-02-01", 10, "100")

		res, ig, err := interpret(b)

		Convey("Then the conversion is a purchase, not a reinstatement", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{
				events.EvalStarted,
				events.LicenseLapsed,
				events.PurchasedLicense,
			})
			So(ig.Len(), ShouldEqual, 0)
			So(res.State.Status, ShouldEqual, events.StatusActive)
			So(res.State.EverPaid, ShouldBeTrue)
		})

		Convey("And the paid license rides along with the purchase", func() {
			So(res.Events[2].Records, ShouldResemble, []model.RecordRef{
				model.LicenseRef(paid),
				model.TransactionRef(sale),
			})
		})
	})

	Convey("Given a license whose renewal covers its end date", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10, mt.Inactive("2022-01-01"))
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		b.Sale(l, "T2", model.SaleRenewal, "2022-01-01", 10, "100")

		res, _, err := interpret(b)

		Convey("Then no lapse is emitted", func() {
			So(err, ShouldBeNil)
			So(kinds(res.Events), ShouldResemble, []events.Kind{events.PurchasedLicense, events.RenewedLicense})
		})
	})
}

func TestInterpretProperties(t *testing.T) {
	build := func() *mt.Builder {
		b := mt.NewBuilder()
		b.License("L1", "2020-11-01", 10, mt.Eval(), mt.Inactive("2020-12-01"))
		l := b.License("L2", "2021-01-01", 10)
		b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		b.Sale(l, "T2", model.SaleUpgrade, "2021-03-01", 25, "60.50")
		b.Sale(l, "T3", model.SaleRefund, "2021-03-15", 25, "-20.25")
		b.Sale(l, "T4", model.SaleRenewal, "2022-01-01", 25, "250")
		b.Sale(l, "T5", model.SaleNew, "2022-02-01", 25, "0")
		b.License("L3", "2022-02-01", 25, mt.Sandbox())
		return b
	}

	Convey("Given a long mixed track", t, func() {
		b := build()
		res, ig, err := interpret(b)
		So(err, ShouldBeNil)

		Convey("Then every input record is covered exactly once", func() {
			seen := map[model.RecordRef]int{}
			for _, e := range res.Events {
				for _, r := range e.Records {
					seen[r]++
				}
			}
			for _, e := range ig.Entries() {
				seen[e.Record]++
			}
			for _, r := range b.Set().Records() {
				So(seen[r], ShouldEqual, 1)
			}
			So(len(seen), ShouldEqual, len(b.Set().Records()))
		})

		Convey("And booked plus ignored amounts equal the net vendor amount", func() {
			sum := decimal.Zero
			for _, e := range res.Events {
				sum = sum.Add(e.Amount)
			}
			for _, e := range ig.Entries() {
				sum = sum.Add(e.Amount)
			}
			net := decimal.Zero
			for _, tx := range b.Arena.Transactions {
				if tx.SaleType == model.SaleRefund {
					net = net.Sub(tx.VendorAmount.Abs())
				} else {
					net = net.Add(tx.VendorAmount)
				}
			}
			So(sum.Equal(net), ShouldBeTrue)
			So(res.State.Paid.Equal(net), ShouldBeTrue)
		})

		Convey("And a second walk yields identical events", func() {
			again, _, err := interpret(b)
			So(err, ShouldBeNil)
			So(again.Events, ShouldResemble, res.Events)
		})
	})
}

func TestInterpretMalformed(t *testing.T) {
	Convey("Given a transaction without a sale type", t, func() {
		b := mt.NewBuilder()
		l := b.License("L1", "2021-01-01", 10)
		tx := b.Sale(l, "T1", model.SaleNew, "2021-01-01", 10, "100")
		b.Arena.Transactions[tx].SaleType = 0

		_, _, err := interpret(b)

		Convey("Then the walk fails closed", func() {
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})
	})
}
