package masscopy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"barcopy/internal/model"
)

// Status is the outcome class of a finished run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusEmpty    Status = "empty" // nothing to copy; informational, not an error
	StatusFailed   Status = "failed"
)

// Report is produced once per finished run, including runs with failed items.
type Report struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled bool          `json:"cancelled"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Stages    []StageStats  `json:"stages"`
	Failures  []failedEntry `json:"-"`
	Err       error         `json:"-"`
	ErrText   string        `json:"error,omitempty"`
}

type failedEntry struct {
	Stage      string `json:"stage"`
	Instrument string `json:"instrument"`
	Window     string `json:"window,omitempty"`
	Reason     string `json:"reason"`
}

func newFailedEntry(r model.StageResult) failedEntry {
	e := failedEntry{
		Stage:      Transition{From: r.From, To: r.To}.String(),
		Instrument: r.Instrument,
	}
	if !r.WindowFrom.IsZero() {
		e.Window = r.WindowFrom.Format(time.RFC3339) + ".." + r.WindowTo.Format(time.RFC3339)
	}
	if r.Err != nil {
		e.Reason = r.Err.Error()
	}
	return e
}

// FailedInstruments lists the instruments with at least one failed item.
func (r *Report) FailedInstruments() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range r.Failures {
		if !seen[f.Instrument] {
			seen[f.Instrument] = true
			out = append(out, f.Instrument)
		}
	}
	return out
}

// WriteReport persists the run summary to dir/.lastrun.json and, when items failed,
// the failure list to dir/.lastrun.failed.json.
func WriteReport(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if r.Err != nil {
		r.ErrText = r.Err.Error()
	}
	p := filepath.Join(dir, ".lastrun.json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return err
	}
	slog.Info("report wrote summary", "path", p, "status", r.Status)

	if len(r.Failures) > 0 {
		p := filepath.Join(dir, ".lastrun.failed.json")
		data, err := json.MarshalIndent(r.Failures, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return err
		}
		slog.Info("report wrote failed", "path", p, "count", len(r.Failures))
	}
	return nil
}

func joinFailedReasons(failedList []failedEntry) string {
	if len(failedList) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failedList {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Instrument)
		b.WriteString(" [")
		b.WriteString(f.Stage)
		b.WriteString("]: ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failedList) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failedList)-5))
			break
		}
	}
	return b.String()
}
