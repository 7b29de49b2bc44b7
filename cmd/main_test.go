package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/dealsync/internal/config"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/domain/types"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const batchDataset = `{
  "licenses": [
    {"id": "L1", "addonKey": "com.example.addon", "tier": 10, "hosting": "Server", "status": "active",
     "maintenanceStart": "2021-01-01", "maintenanceEnd": "2023-01-01",
     "contacts": [{"email": "tech@customer.test", "role": "technical"}]},
    {"id": "L2", "addonKey": "com.example.addon", "tier": 10, "hosting": "Server", "status": "inactive",
     "maintenanceStart": "2021-03-01", "maintenanceEnd": "2021-03-31", "evaluation": true}
  ],
  "transactions": [
    {"id": "T1", "licenseId": "L1", "saleDate": "2021-01-01", "saleType": "New", "tier": 10, "vendorAmount": 100},
    {"id": "T2", "licenseId": "L1", "saleDate": "2022-01-01", "saleType": "Renewal", "tier": 10, "vendorAmount": "120.00"}
  ],
  "deals": [],
  "contacts": [
    {"email": "tech@customer.test", "type": "customer", "company": "Customer Inc"}
  ]
}`

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	convey.Convey("Given a batch configuration", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		cfg := config.New(ctx)
		cfg.DatasetPath = writeDataset(t, batchDataset)
		cfg.DealsOutPath = filepath.Join(dir, "deals.json")
		cfg.InspectionPath = filepath.Join(dir, "inspection.yaml")
		cfg.MetricsTextfile = filepath.Join(dir, "dealsync.prom")
		cfg.WorkerCount = 2

		convey.Convey("When the batch runs", func() {
			var out bytes.Buffer
			engine, err := run(ctx, cfg, &out)
			convey.So(err, convey.ShouldBeNil)
			convey.So(engine, convey.ShouldNotBeNil)

			convey.Convey("Then the report is printed as JSON", func() {
				var rep types.Report
				convey.So(json.Unmarshal(out.Bytes(), &rep), convey.ShouldBeNil)
				convey.So(rep.Groups, convey.ShouldEqual, 2)
				convey.So(rep.Creates, convey.ShouldEqual, 1)
				convey.So(engine.Report().RunID, convey.ShouldEqual, rep.RunID)
			})

			convey.Convey("Then every configured output is written", func() {
				deals, err := os.ReadFile(cfg.DealsOutPath)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(deals), convey.ShouldContainSubstring, `"licenseIds"`)
				convey.So(string(deals), convey.ShouldContainSubstring, "tech@customer.test")

				trace, err := os.ReadFile(cfg.InspectionPath)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(trace), convey.ShouldContainSubstring, "actions:")

				prom, err := os.ReadFile(cfg.MetricsTextfile)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(prom), convey.ShouldContainSubstring, "dealsync_engine_groups_processed_total")
			})

			convey.Convey("Then a second run over the exported dataset changes nothing", func() {
				again := *cfg
				again.DatasetPath = cfg.DealsOutPath
				again.DealsOutPath = ""
				again.InspectionPath = ""
				again.MetricsTextfile = ""

				var second bytes.Buffer
				_, err := run(ctx, &again, &second)
				convey.So(err, convey.ShouldBeNil)

				var rep types.Report
				convey.So(json.Unmarshal(second.Bytes(), &rep), convey.ShouldBeNil)
				convey.So(rep.Creates, convey.ShouldEqual, 0)
				convey.So(rep.Updates, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When two groups claim the same license", func() {
			cfg.DatasetPath = writeDataset(t, strings.Replace(batchDataset,
				`"deals": []`, `"groups": [["L1"], ["L1", "L2"]], "deals": []`, 1))

			var out bytes.Buffer
			_, err := run(ctx, cfg, &out)

			convey.Convey("Then the batch aborts before writing anything", func() {
				convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
				convey.So(out.Len(), convey.ShouldEqual, 0)
				_, statErr := os.Stat(cfg.DealsOutPath)
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the dataset does not exist", func() {
			cfg.DatasetPath = filepath.Join(dir, "missing.json")
			_, err := run(ctx, cfg, &bytes.Buffer{})
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the minimum amount is malformed", func() {
			cfg.MinTransactionAmount = "ten"
			_, err := run(ctx, cfg, &bytes.Buffer{})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestExecute(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		convey.Reset(func() {
			_ = os.Unsetenv("DEALSYNC_DATASET_PATH")
			_ = os.Unsetenv("DEALSYNC_ADDR")
			_ = os.Unsetenv("DEALSYNC_LOG_LEVEL")
		})

		convey.Convey("When no dataset path is configured", func() {
			_ = os.Unsetenv("DEALSYNC_DATASET_PATH")
			err := execute(context.Background())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a dataset is configured and no address is set", func() {
			_ = os.Setenv("DEALSYNC_DATASET_PATH", writeDataset(t, batchDataset))
			_ = os.Setenv("DEALSYNC_LOG_LEVEL", "loud")

			convey.Convey("Then the batch runs and exits without serving", func() {
				convey.So(execute(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given an engine that finished a batch", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.DatasetPath = writeDataset(t, batchDataset)
		engine, err := run(ctx, cfg, &bytes.Buffer{})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the serving context is cancelled", func() {
			serveCtx, cancel := context.WithCancel(ctx)
			cancel()

			convey.Convey("Then the server shuts down cleanly", func() {
				convey.So(serve(serveCtx, "127.0.0.1:0", engine), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the address cannot be bound", func() {
			err := serve(ctx, "256.0.0.1:bad", engine)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
