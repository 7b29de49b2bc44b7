package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/fixture"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const sampleDataset = `{
  "licenses": [
    {"id": "L1", "addonKey": "com.example.addon", "tier": 10, "hosting": "Server", "status": "active",
     "maintenanceStart": "2021-01-01", "maintenanceEnd": "2022-01-01",
     "contacts": [{"email": "jane@customer.test", "role": "technical"}]}
  ],
  "transactions": [
    {"id": "T1", "licenseId": "L1", "saleDate": "2021-01-01", "saleType": "New", "tier": 10, "vendorAmount": 100,
     "partner": "Reseller GmbH", "contacts": [{"email": "ap@customer.test", "role": "billing"}]}
  ],
  "deals": []
}`

// testID is base64 of [["L1",["T1"]]].
const testID = "W1siTDEiLFsiVDEiXV1d"

func TestGenerate(t *testing.T) {
	convey.Convey("Given a dataset on disk", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		path := filepath.Join(dir, "dataset.json")
		convey.So(os.WriteFile(path, []byte(sampleDataset), 0o600), convey.ShouldBeNil)

		convey.Convey("When a test is generated for a group", func() {
			test, err := generate(ctx, options{TestID: testID, DatasetPath: path, Dir: dir, Package: "regress_test"})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the test and its fixture are written", func() {
				convey.So(test, convey.ShouldEqual, filepath.Join(dir, "groupl1_test.go"))
				src, err := os.ReadFile(test)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(src), convey.ShouldContainSubstring, "package regress_test")
				convey.So(string(src), convey.ShouldContainSubstring, "func TestGroupL1(t *testing.T)")

				f, err := fixture.LoadFile(filepath.Join(dir, "testdata", "groupl1.yaml"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.TestID, convey.ShouldEqual, testID)
				convey.So(f.Group[0].Contacts[0].Email, convey.ShouldEqual, "contact1@domain1.example")
				convey.So(f.Group[0].Transactions[0].Partner, convey.ShouldEqual, "partner1")
				convey.So(f.Actions, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When an explicit name is given", func() {
			test, err := generate(ctx, options{TestID: testID, Name: "first purchase", DatasetPath: path, Dir: dir})
			convey.So(err, convey.ShouldBeNil)
			convey.So(filepath.Base(test), convey.ShouldEqual, "firstpurchase_test.go")
		})

		convey.Convey("When the test id is missing", func() {
			_, err := generate(ctx, options{DatasetPath: path, Dir: dir})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the test id names an unknown group", func() {
			// [["L9",[]]]
			_, err := generate(ctx, options{TestID: "W1siTDkiLFtdXV0=", DatasetPath: path, Dir: dir})
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
		})
	})
}
