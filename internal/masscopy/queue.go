package masscopy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"barcopy/internal/model"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

// WorkQueue is the shared work list of one stage. Workers Pop under the lock;
// an item popped by one worker is never seen by another.
type WorkQueue struct {
	mu    sync.Mutex
	items []model.CopyWorkItem
}

// NewWorkQueue copies items into a new queue.
func NewWorkQueue(items []model.CopyWorkItem) *WorkQueue {
	return &WorkQueue{items: append([]model.CopyWorkItem(nil), items...)}
}

// Push adds an item on top.
func (q *WorkQueue) Push(it model.CopyWorkItem) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
}

// Pop removes the top item. ok is false when the queue is drained.
func (q *WorkQueue) Pop() (model.CopyWorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n == 0 {
		return model.CopyWorkItem{}, false
	}
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it, true
}

// Len returns the number of items left.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stages holds one work list per transition, in run order.
type Stages [NumStages][]model.CopyWorkItem

// Total counts items across all stages.
func (s Stages) Total() int {
	n := 0
	for _, items := range s {
		n += len(items)
	}
	return n
}

// Builder decides, per instrument, which stages have something to do.
type Builder struct {
	Store     storage.Storage
	Converter *window.Converter
	Logger    *slog.Logger
}

// BuildStages schedules instrument i in stage k when k is enabled and i either is scheduled
// in the stage producing k's source resolution or already has source bars in the window.
// Instruments with nothing to do are left out silently.
func (b *Builder) BuildStages(ctx context.Context, instruments []string, s Settings) (Stages, error) {
	var stages Stages
	scheduled := [NumStages]map[string]bool{}
	for k := range scheduled {
		scheduled[k] = make(map[string]bool)
	}
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}

	instruments = dedupe(instruments)
	for _, inst := range instruments {
		from, to, err := b.Converter.Window(ctx, inst, s.From, s.To, s.TZMode)
		if err != nil {
			// Keep the item schedulable; the executor reports the failure per item.
			log.Warn("window conversion failed, checking raw window", "instrument", inst, "error", err)
			from, to = s.From.UTC(), s.To.UTC()
		}
		for k, tr := range Transitions {
			if err := ctx.Err(); err != nil {
				return stages, err
			}
			if !s.Enabled(k) {
				continue
			}
			if p := producer[k]; p >= 0 && scheduled[p][inst] {
				scheduled[k][inst] = true
				continue
			}
			n, err := b.Store.GetBarCount(ctx, s.DataProvider, inst, tr.From, from, to)
			if err != nil {
				return stages, fmt.Errorf("count %s bars for %s: %w", tr.From, inst, err)
			}
			if n > 0 {
				scheduled[k][inst] = true
			}
		}
	}

	for k, tr := range Transitions {
		for _, inst := range instruments {
			if scheduled[k][inst] {
				stages[k] = append(stages[k], model.CopyWorkItem{SourceResolution: tr.From, InstrumentID: inst})
			}
		}
	}
	for k, tr := range Transitions {
		log.Info("stage built", "stage", tr.String(), "items", len(stages[k]), "enabled", s.Enabled(k))
	}
	return stages, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
