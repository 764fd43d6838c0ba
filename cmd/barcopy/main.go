package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"barcopy/internal/app"
	"barcopy/internal/masscopy"
	"barcopy/internal/metrics"
	"barcopy/internal/slogx"
)

// App holds application dependencies built by Wire.
type App struct {
	Config       *app.Config
	Orchestrator *masscopy.Orchestrator
	Progress     app.Progress
}

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code; deferred cleanup runs before main exits.
func run(args []string) int {
	ctx := context.Background()
	a, cleanup, err := InitializeApp(ctx)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer cleanup()

	cfg := a.Config
	slog.SetDefault(slogx.NewDefault(cfg.LogLevel))

	instruments, err := loadInstruments(cfg, args)
	if err != nil {
		slog.Error("failed to get instruments", "error", err)
		return 1
	}
	slog.Info("got instruments", "count", len(instruments), "provider", cfg.DataProvider,
		"from", cfg.From.Time, "to", cfg.To.Time, "tz_mode", cfg.TZMode.String())

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsAddr, prometheus.DefaultGatherer) })
	}

	var report *masscopy.Report
	g.Go(func() error {
		defer stop()
		r, err := app.RunFlow(gctx, cfg, a.Orchestrator, a.Progress, instruments)
		report = r
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("mass copy aborted", "error", err)
		return 1
	}
	if report != nil && report.Status == masscopy.StatusFailed {
		slog.Error("mass copy failed", "error", report.Err)
		return 1
	}
	return 0
}

// loadInstruments reads BARCOPY_INSTRUMENTS_FILE and appends ids given as arguments.
func loadInstruments(cfg *app.Config, args []string) ([]string, error) {
	var ids []string
	if cfg.InstrumentsFile != "" {
		slog.Info("reading instruments from file", "path", cfg.InstrumentsFile)
		fromFile, err := app.LoadInstrumentsFromFile(cfg.InstrumentsFile)
		if err != nil {
			return nil, err
		}
		ids = fromFile
	}
	return append(ids, args...), nil
}
