package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"barcopy/internal/masscopy"
	"barcopy/internal/metrics"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideStorage creates the configured bar store (for Wire).
// Caller must run the cleanup when shutting down.
func ProvideStorage(ctx context.Context, cfg *Config) (storage.Storage, func(), error) {
	return CreateStorage(ctx, cfg)
}

// ProvideConverter creates the window converter (for Wire).
func ProvideConverter(cfg *Config) (*window.Converter, error) {
	return CreateConverter(cfg)
}

// ProvideMetrics registers collectors on the default registry (for Wire).
func ProvideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// Progress carries per-item progress from the workers to the progress writer.
type Progress chan masscopy.ProgressUpdate

// ProvideProgress creates the progress channel (for Wire).
func ProvideProgress() Progress {
	return make(Progress, 256)
}

// ProvideOrchestrator wires the orchestrator with report dir, heartbeat, progress and metrics (for Wire).
func ProvideOrchestrator(cfg *Config, st storage.Storage, conv *window.Converter, m *metrics.Metrics, p Progress) *masscopy.Orchestrator {
	return masscopy.New(st, conv,
		masscopy.WithMetrics(m),
		masscopy.WithProgress(p),
		masscopy.WithReportDir(cfg.ReportPath()),
		masscopy.WithHeartbeat(cfg.Heartbeat),
	)
}
