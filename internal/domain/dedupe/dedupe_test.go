package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/dealsync/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When created with default options", func() {
			d := dedupe.NewInMemoryDeduper()
			So(d, ShouldNotBeNil)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When created with an expected size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithExpectedSize(1000))
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a record is claimed", func() {
			d := dedupe.NewInMemoryDeduper()
			prev, dup := d.Claim(ctx, "license:L1", "group-a")

			Convey("Then it is new and owned by the claimant", func() {
				So(dup, ShouldBeFalse)
				So(prev, ShouldBeEmpty)
				So(d.Size(), ShouldEqual, 1)
				owner, ok := d.Owner(ctx, "license:L1")
				So(ok, ShouldBeTrue)
				So(owner, ShouldEqual, "group-a")
			})

			Convey("And claimed again by another group", func() {
				prev, dup := d.Claim(ctx, "license:L1", "group-b")

				Convey("Then the first owner is reported and kept", func() {
					So(dup, ShouldBeTrue)
					So(prev, ShouldEqual, "group-a")
					So(d.Size(), ShouldEqual, 1)
					owner, _ := d.Owner(ctx, "license:L1")
					So(owner, ShouldEqual, "group-a")
				})
			})
		})

		Convey("When an unknown id is queried", func() {
			d := dedupe.NewInMemoryDeduper()
			_, ok := d.Owner(ctx, "transaction:T404")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines claiming the same ids", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()
		var wins atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if _, dup := d.Claim(ctx, fmt.Sprintf("record-%d", i), fmt.Sprintf("group-%d", g)); !dup {
						wins.Add(1)
					}
				}
			}(g)
		}
		wg.Wait()

		Convey("Then each id has exactly one owner", func() {
			So(wins.Load(), ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
