package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/dealsync/internal/adapters/repository"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("deal-%d", n)
	}
}

func props(amount int64, licenses ...string) actions.Properties {
	return actions.Properties{
		Name:       "addon (" + licenses[0] + ")",
		AddonKey:   "addon",
		Stage:      actions.StageClosedWon,
		Amount:     decimal.NewFromInt(amount),
		LicenseIDs: licenses,
	}
}

func TestMemStore(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		s := repository.NewMemStore(
			repository.WithIDGenerator(sequentialIDs()),
			repository.WithClock(func() time.Time { return fixed }),
		)

		Convey("When a deal is created", func() {
			ref, err := s.Create(ctx, props(100, "L1", "L2"))
			So(err, ShouldBeNil)
			So(ref, ShouldEqual, actions.DealRef("deal-1"))

			Convey("Then it is visible to lookups by any of its licenses", func() {
				for _, id := range []string{"L1", "L2"} {
					got, ok, err := s.Lookup(ctx, id)
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(got, ShouldEqual, ref)
				}
				_, ok, _ := s.Lookup(ctx, "L3")
				So(ok, ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 1)
			})

			Convey("Then its properties are stored by value", func() {
				cur, err := s.Current(ctx, ref)
				So(err, ShouldBeNil)
				cur.LicenseIDs[0] = "mutated"
				again, _ := s.Current(ctx, ref)
				So(again.LicenseIDs, ShouldResemble, []string{"L1", "L2"})

				d, err := s.Get(ctx, ref)
				So(err, ShouldBeNil)
				So(d.CreatedAt, ShouldEqual, fixed)
			})

			Convey("And updated to drop a license", func() {
				So(s.Update(ctx, ref, props(200, "L1")), ShouldBeNil)

				Convey("Then the dropped license no longer resolves", func() {
					_, ok, _ := s.Lookup(ctx, "L2")
					So(ok, ShouldBeFalse)
					cur, _ := s.Current(ctx, ref)
					So(cur.Amount.Equal(decimal.NewFromInt(200)), ShouldBeTrue)
				})
			})

			Convey("And another deal claims one of its licenses", func() {
				_, err := s.Create(ctx, props(50, "L2"))

				Convey("Then the create is rejected", func() {
					So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
					So(s.Count(ctx), ShouldEqual, 1)
				})
			})

			Convey("And associations are attached", func() {
				err := s.Associate(ctx, ref, repository.Association{
					Contacts:  []string{"a@customer.test"},
					Companies: []string{"Customer Inc"},
					Partner:   "partner.test",
				})
				So(err, ShouldBeNil)
				d, _ := s.Get(ctx, ref)
				So(d.Contacts, ShouldResemble, []string{"a@customer.test"})
				So(d.Partner, ShouldEqual, "partner.test")
			})
		})

		Convey("When an unknown deal is touched", func() {
			So(errors.Is(s.Update(ctx, "nope", props(1, "L1")), repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(s.Associate(ctx, "nope", repository.Association{}), repository.ErrNotFound), ShouldBeTrue)
			_, err := s.Current(ctx, "nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Create(cctx, props(1, "L1"))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given seeded deals", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore(repository.WithIDGenerator(sequentialIDs()))
		err := s.Seed(ctx, []repository.Deal{
			{Ref: "crm-2", Properties: props(10, "L9")},
			{Ref: "crm-1", Properties: props(20, "L8")},
		})
		So(err, ShouldBeNil)

		Convey("Then they keep their refs and order", func() {
			deals := s.Deals(ctx)
			So(len(deals), ShouldEqual, 2)
			So(deals[0].Ref, ShouldEqual, actions.DealRef("crm-2"))
			So(deals[1].Ref, ShouldEqual, actions.DealRef("crm-1"))
			ref, ok, _ := s.Lookup(ctx, "L8")
			So(ok, ShouldBeTrue)
			So(ref, ShouldEqual, actions.DealRef("crm-1"))
		})

		Convey("Then overlapping seeds are rejected", func() {
			err := s.Seed(ctx, []repository.Deal{{Ref: "crm-3", Properties: props(5, "L9")}})
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
		})
	})

	Convey("Given concurrent creates on distinct licenses", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = s.Create(ctx, props(int64(i), fmt.Sprintf("L%d", i)))
			}(i)
		}
		wg.Wait()

		Convey("Then every deal is stored under a unique uuid", func() {
			So(s.Count(ctx), ShouldEqual, 50)
			seen := map[actions.DealRef]bool{}
			for _, d := range s.Deals(ctx) {
				seen[d.Ref] = true
			}
			So(len(seen), ShouldEqual, 50)
		})
	})
}
