package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"barcopy/internal/masscopy"
)

// RunFlow runs one mass copy: start → wait for report. SIGINT/SIGTERM cancel the run;
// in-flight items still finish and the partial report is returned.
func RunFlow(ctx context.Context, cfg *Config, orch *masscopy.Orchestrator, progress Progress, instruments []string) (*masscopy.Report, error) {
	var pw sync.WaitGroup
	pw.Add(1)
	go func() {
		defer pw.Done()
		masscopy.RunProgressWriter(cfg.ProgressPath(), progress)
	}()
	defer func() {
		close(progress)
		pw.Wait()
	}()

	reports, err := orch.Start(ctx, cfg.Settings(), instruments)
	if err != nil {
		return nil, err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for {
		select {
		case r := <-reports:
			return r, nil
		case sig := <-signals:
			slog.Info("received signal, graceful shutdown", "sig", sig, "state", orch.Status().String())
			orch.Cancel()
		}
	}
}
