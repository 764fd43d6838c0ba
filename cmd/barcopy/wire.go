//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"barcopy/internal/app"

	"github.com/google/wire"
)

// InitializeApp builds App (Config + Storage + Orchestrator) via Wire.
// Caller must run the cleanup when done.
func InitializeApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideStorage,
		app.ProvideConverter,
		app.ProvideMetrics,
		app.ProvideProgress,
		app.ProvideOrchestrator,
		wire.Struct(new(App), "Config", "Orchestrator", "Progress"),
	)
	return nil, nil, nil
}
