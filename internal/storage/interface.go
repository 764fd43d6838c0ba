package storage

import (
	"context"
	"time"

	"barcopy/internal/model"
)

// Storage persists and retrieves bar series keyed by provider, instrument and resolution.
// Ranges are inclusive [from, to] in UTC. GetBars returns bars in ascending timestamp order.
//
// Implementations serialize their own writes. Callers get no transaction spanning a
// DeleteBars followed by WriteBars.
type Storage interface {
	GetBarCount(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error)
	GetBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error)
	DeleteBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error)
	WriteBars(ctx context.Context, provider, instrument string, res model.Resolution, bars []model.Bar) error
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
