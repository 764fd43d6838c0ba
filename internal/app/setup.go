package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"barcopy/internal/exchange"
	"barcopy/internal/saver"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

// CreateStorage creates the bar store selected by BARCOPY_STORAGE.
// The returned cleanup closes the connection pool for postgres and is a no-op otherwise.
func CreateStorage(ctx context.Context, cfg *Config) (storage.Storage, func(), error) {
	switch strings.ToLower(cfg.Storage) {
	case "memory":
		slog.Info("wire", "storage", "memory")
		return storage.NewMemory(), func() {}, nil
	case "file", "":
		codec := saver.NewCodec(cfg.FileFormat)
		if codec == nil {
			return nil, nil, fmt.Errorf("unsupported BARCOPY_FILE_FORMAT %q (use: csv, parquet, json)", cfg.FileFormat)
		}
		fs, err := storage.NewFileStore(cfg.DataDir, codec)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("wire", "storage", "file", "format", cfg.FileFormat, "dir", cfg.DataDir,
			"pattern", "{PROVIDER}/{INSTRUMENT}/{instrument}_{resolution}."+codec.Extension())
		return fs, func() {}, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("BARCOPY_POSTGRES_DSN not set")
		}
		pool, err := storage.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("wire", "storage", "postgres")
		return pg, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage: %s. Options: memory, file, postgres", cfg.Storage)
	}
}

// CreateConverter builds the window converter, with the exchange directory when one is configured.
func CreateConverter(cfg *Config) (*window.Converter, error) {
	if cfg.ExchangesFile == "" {
		if cfg.TZMode == window.Exchange {
			slog.Warn("exchange time zone mode without BARCOPY_EXCHANGES_FILE; every item will fail")
		}
		return window.NewConverter(nil), nil
	}
	dir, err := exchange.LoadFile(cfg.ExchangesFile)
	if err != nil {
		return nil, err
	}
	return window.NewConverter(dir), nil
}
