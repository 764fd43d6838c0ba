package masscopy

import (
	"context"
	"log/slog"
	"time"
)

func runHeartbeat(ctx context.Context, interval time.Duration, c *counters, state func() State, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("heartbeat",
				"state", state().String(),
				"done", c.processed.Load(),
				"total", c.total.Load(),
				"success", c.succeeded.Load(),
				"failed", c.failed.Load())
		}
	}
}
