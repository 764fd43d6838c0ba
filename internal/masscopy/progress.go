package masscopy

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ProgressUpdate is sent after every processed item, success or failure.
type ProgressUpdate struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

type progressFile struct {
	ProgressUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

// RunProgressWriter receives updates and persists the latest one to path (run as goroutine).
// It returns when updates is closed.
func RunProgressWriter(path string, updates <-chan ProgressUpdate) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("progress dir error", "error", err)
	}
	for u := range updates {
		data, err := json.MarshalIndent(progressFile{ProgressUpdate: u, UpdatedAt: time.Now().UTC()}, "", "  ")
		if err != nil {
			slog.Warn("progress marshal error", "error", err)
			continue
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			slog.Warn("progress write error", "error", err)
		}
	}
}
