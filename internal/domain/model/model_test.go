package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseEnums(t *testing.T) {
	Convey("Given marketplace enum spellings", t, func() {
		Convey("When parsing known values", func() {
			h, err := model.ParseHosting("Data Center")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, model.HostingDataCenter)

			s, err := model.ParseLicenseStatus("Cancelled")
			So(err, ShouldBeNil)
			So(s, ShouldEqual, model.StatusInactive)

			st, err := model.ParseSaleType(" refund ")
			So(err, ShouldBeNil)
			So(st, ShouldEqual, model.SaleRefund)
			So(st.String(), ShouldEqual, "Refund")

			r, err := model.ParseContactRole("partner")
			So(err, ShouldBeNil)
			So(r, ShouldEqual, model.RolePartner)
		})

		Convey("When parsing unknown values", func() {
			_, err := model.ParseSaleType("Gift")

			Convey("Then it should report invalid input", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestRelatedLicenseSet(t *testing.T) {
	Convey("Given an arena with one license context", t, func() {
		a := &model.Arena{}
		lid := a.AddLicense(model.License{SourceID: "L1", Tier: 10, MaintenanceStart: day("2021-01-01")})
		tid := a.AddTransaction(model.Transaction{
			SourceID:     "T1",
			License:      lid,
			SaleDate:     day("2021-01-01"),
			SaleType:     model.SaleNew,
			VendorAmount: decimal.NewFromInt(100),
		})
		set := model.RelatedLicenseSet{Contexts: []model.LicenseContext{{License: lid, Transactions: []model.TransactionID{tid}}}}

		Convey("When encoding the test id", func() {
			id := set.TestID(a)
			entries, err := model.DecodeTestID(id)

			Convey("Then it should round-trip the source ids", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldResemble, []model.TestIDEntry{{License: "L1", Transactions: []string{"T1"}}})
				So(set.TestID(a), ShouldEqual, id)
			})
		})

		Convey("When validating a well-formed set", func() {
			So(set.Validate(a), ShouldBeNil)
			So(set.Records(), ShouldResemble, []model.RecordRef{model.LicenseRef(lid), model.TransactionRef(tid)})
		})

		Convey("When a transaction has no sale date", func() {
			a.Transactions[tid].SaleDate = time.Time{}
			err := set.Validate(a)

			Convey("Then it should fail closed with an input error", func() {
				var inErr *model.InputError
				So(errors.As(err, &inErr), ShouldBeTrue)
				So(inErr.Record, ShouldEqual, "T1")
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When a transaction points at another license", func() {
			other := a.AddLicense(model.License{SourceID: "L2", MaintenanceStart: day("2021-01-01")})
			a.Transactions[tid].License = other

			So(errors.Is(set.Validate(a), model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the set is empty", func() {
			err := model.RelatedLicenseSet{}.Validate(a)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a malformed test id", t, func() {
		_, err := model.DecodeTestID("not base64!")
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})
}

func TestInvariantError(t *testing.T) {
	Convey("Given an invariant error", t, func() {
		err := &model.InvariantError{Group: "g", Deal: "d", Reason: "two open deals"}
		So(errors.Is(err, model.ErrInvariant), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "deal d")
	})
}
