package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/dealsync/internal/adapters/dataset"
	"github.com/okian/dealsync/internal/adapters/http/api"
	"github.com/okian/dealsync/internal/adapters/http/swagger"
	"github.com/okian/dealsync/internal/adapters/inspection"
	"github.com/okian/dealsync/internal/adapters/repository"
	app "github.com/okian/dealsync/internal/app"
	"github.com/okian/dealsync/internal/config"
	"github.com/okian/dealsync/internal/domain/types"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/okian/dealsync/pkg/metrics"
)

func main() {
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	if err != nil {
		logger.Get().Error(context.Background(), "dealsync failed", logger.Error(err))
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	engine, err := run(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if cfg.Addr == "" {
		return nil
	}
	return serve(ctx, cfg.Addr, engine)
}

// run executes one batch: load the dataset, reconcile every group against the
// seeded registry, write the configured outputs and print the report.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) (*app.Engine, error) {
	log := logger.Named("cli")

	minAmount, err := cfg.MinAmount()
	if err != nil {
		return nil, err
	}

	ds, err := dataset.LoadFile(ctx, cfg.DatasetPath)
	if err != nil {
		return nil, err
	}

	store := repository.NewMemStore()
	if err := store.Seed(ctx, ds.Deals); err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}

	trace := inspection.New()
	engine := app.New(
		app.WithLogger(logger.Named("engine")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithTrialDeals(cfg.TrialDeals),
		app.WithMinAmount(minAmount),
		app.WithFailFast(cfg.FailFast),
		app.WithInspection(trace),
		app.WithDirectory(repository.NewDirectory(ds.Contacts)),
		app.WithStore(store),
	)

	rep, err := engine.Run(ctx, ds.Arena, ds.Groups)
	if err != nil {
		return nil, err
	}

	if cfg.DealsOutPath != "" {
		if err := ds.ExportFile(cfg.DealsOutPath, store.Deals(ctx)); err != nil {
			return nil, err
		}
		log.Info(ctx, "deals written", logger.String("path", cfg.DealsOutPath), logger.Int("deals", store.Count(ctx)))
	}
	if cfg.InspectionPath != "" {
		if err := trace.WriteFile(cfg.InspectionPath); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			return nil, err
		}
	}

	if err := printReport(stdout, rep); err != nil {
		return nil, err
	}
	return engine, nil
}

func printReport(w io.Writer, rep *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// serve exposes the last report until ctx is cancelled.
func serve(ctx context.Context, addr string, engine *app.Engine) error {
	metrics.RegisterRuntimeCollectors()

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(engine).Register(ctx, mux)

	return api.ListenAndServe(ctx, addr, mux)
}
