// Command generate-test turns one group of a dataset into a regression test:
// a redacted YAML fixture under testdata/ and a GoConvey test that replays it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/dealsync/internal/adapters/dataset"
	app "github.com/okian/dealsync/internal/app"
	"github.com/okian/dealsync/internal/config"
	"github.com/okian/dealsync/internal/fixture"
	"github.com/okian/dealsync/pkg/logger"
)

type options struct {
	TestID      string
	Name        string
	DatasetPath string
	Dir         string
	Package     string
}

func main() {
	var opts options
	flag.StringVar(&opts.TestID, "id", "", "Group test ID (base64) as printed in logs and inspection traces")
	flag.StringVar(&opts.Name, "name", "", "Test name (default: derived from the first license ID)")
	flag.StringVar(&opts.DatasetPath, "dataset", "", "Dataset path (default: dataset_path from configuration)")
	flag.StringVar(&opts.Dir, "dir", "internal/fixture", "Package directory receiving the test and testdata/")
	flag.StringVar(&opts.Package, "package", "fixture_test", "Package clause of the generated test")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := context.Background()
	test, err := generate(ctx, opts)
	if err != nil {
		logger.Get().Error(ctx, "generate test failed", logger.Error(err))
		os.Exit(1)
	}
	fmt.Println(test)
}

// generate writes the fixture and its test and returns the test file path.
func generate(ctx context.Context, opts options) (string, error) {
	if opts.TestID == "" {
		return "", fmt.Errorf("missing -id")
	}

	cfg := config.New(ctx)
	if opts.DatasetPath == "" {
		loaded, err := config.Load(ctx)
		if err != nil {
			return "", err
		}
		cfg = loaded
	} else {
		cfg.DatasetPath = opts.DatasetPath
	}
	minAmount, err := cfg.MinAmount()
	if err != nil {
		return "", err
	}

	ds, err := dataset.LoadFile(ctx, cfg.DatasetPath)
	if err != nil {
		return "", err
	}
	planner := app.New(
		app.WithLogger(logger.Named("engine")),
		app.WithTrialDeals(cfg.TrialDeals),
		app.WithMinAmount(minAmount),
	)
	f, err := fixture.Extract(ctx, ds.Arena, opts.TestID, planner)
	if err != nil {
		return "", err
	}

	name := opts.Name
	if name == "" && len(f.Group) > 0 {
		name = "group " + f.Group[0].ID
	}
	name = fixture.TestName(name)
	base := strings.ToLower(name)

	data := filepath.Join(opts.Dir, "testdata", base+".yaml")
	if err := os.MkdirAll(filepath.Dir(data), 0o755); err != nil {
		return "", fmt.Errorf("create testdata: %w", err)
	}
	if err := writeFile(data, func(fh *os.File) error { return f.Write(fh) }); err != nil {
		return "", err
	}

	test := filepath.Join(opts.Dir, base+"_test.go")
	tf := fixture.TestFile{Package: opts.Package, Name: name, Path: filepath.ToSlash(filepath.Join("testdata", base+".yaml")), TestID: opts.TestID}
	if err := writeFile(test, func(fh *os.File) error { return fixture.RenderTest(fh, tf) }); err != nil {
		return "", err
	}

	logger.Named("generate-test").Info(ctx, "fixture written",
		logger.String("group", opts.TestID),
		logger.String("fixture", data),
		logger.String("test", test),
		logger.Int("events", len(f.Events)),
		logger.Int("actions", len(f.Actions)))
	return test, nil
}

func writeFile(path string, write func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(fh); err != nil {
		_ = fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
