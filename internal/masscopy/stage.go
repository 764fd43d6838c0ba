package masscopy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"barcopy/internal/metrics"
	"barcopy/internal/model"
	"barcopy/internal/resample"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

// StageStats summarizes one drained (or cancelled) stage.
type StageStats struct {
	Stage     string        `json:"stage"`
	Items     int           `json:"items"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // left in the queue after cancellation
	Workers   int           `json:"workers"`
	Elapsed   time.Duration `json:"elapsed"`
}

// counters are shared by every worker of a run.
type counters struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	processed atomic.Int64
	total     atomic.Int64
}

// Executor runs one stage with a bounded pool of workers.
type Executor struct {
	Store     storage.Storage
	Converter *window.Converter
	Settings  Settings
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Progress  chan<- ProgressUpdate
	// OnResult, when set, receives every item result. Called from worker goroutines.
	OnResult func(model.StageResult)

	counters *counters
	// ownCounters is set when RunStage created counters itself; each stage then adds to total.
	ownCounters bool
}

// ClampWorkers bounds n to [1, max]. A max below 1 means runtime.GOMAXPROCS(0).
func ClampWorkers(n, max int) int {
	if max < 1 {
		max = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// RunStage drains queue with workers goroutines and blocks until all of them exit.
// Cancellation is checked between items only; an item already popped runs to completion.
func (e *Executor) RunStage(ctx context.Context, queue *WorkQueue, from, to model.Resolution, workers int) StageStats {
	if e.counters == nil {
		e.counters = &counters{}
		e.ownCounters = true
	}
	if e.ownCounters {
		e.counters.total.Add(int64(queue.Len()))
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	stage := Transition{From: from, To: to}.String()
	stats := StageStats{Stage: stage, Items: queue.Len(), Workers: workers}
	if workers < 1 {
		workers = 1
		stats.Workers = 1
	}
	start := time.Now()

	// Items never see the cancellation: it only stops further pops.
	itemCtx := context.WithoutCancel(ctx)

	var attempted, succeeded, failed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				item, ok := queue.Pop()
				if !ok {
					return
				}
				attempted.Add(1)
				e.counters.attempted.Add(1)

				res := e.processSafe(itemCtx, item, to)
				if res.Ok() {
					succeeded.Add(1)
					e.counters.succeeded.Add(1)
					log.Info("copy ok", "stage", stage, "instrument", item.InstrumentID,
						"source", res.SourceCount, "produced", res.ProducedCount, "deleted", res.DeletedCount)
					e.Metrics.BarsWrittenAdd(to.String(), res.ProducedCount)
				} else {
					failed.Add(1)
					e.counters.failed.Add(1)
					log.Error("copy fail", "stage", stage, "instrument", item.InstrumentID, "error", res.Err)
				}
				e.Metrics.ItemDone(stage, res.Ok())
				if e.OnResult != nil {
					e.OnResult(res)
				}
				e.tick(stage, item.InstrumentID)
			}
		}()
	}
	wg.Wait()

	stats.Attempted = int(attempted.Load())
	stats.Succeeded = int(succeeded.Load())
	stats.Failed = int(failed.Load())
	stats.Skipped = queue.Len()
	stats.Elapsed = time.Since(start)
	e.Metrics.ObserveStage(stage, stats.Elapsed.Seconds())
	return stats
}

func (e *Executor) tick(stage, instrument string) {
	n := e.counters.processed.Add(1)
	if e.Progress == nil {
		return
	}
	u := ProgressUpdate{
		Processed: int(n),
		Total:     int(e.counters.total.Load()),
		Message:   fmt.Sprintf("%s %s", stage, instrument),
	}
	select {
	case e.Progress <- u:
	default:
		// progress consumer is behind; the next tick carries the newer count
	}
}

// processSafe turns a panic inside one item into that item's failure.
func (e *Executor) processSafe(ctx context.Context, item model.CopyWorkItem, to model.Resolution) (res model.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			res = model.StageResult{
				Instrument: item.InstrumentID,
				From:       item.SourceResolution,
				To:         to,
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return e.process(ctx, item, to)
}

// process copies one instrument: read source, resample, delete target window, write.
// A failure after DeleteBars leaves the target window partially cleared; there is no retry.
func (e *Executor) process(ctx context.Context, item model.CopyWorkItem, to model.Resolution) model.StageResult {
	s := e.Settings
	res := model.StageResult{Instrument: item.InstrumentID, From: item.SourceResolution, To: to}

	if err := resample.ValidateTransition(item.SourceResolution, to); err != nil {
		res.Err = err
		return res
	}
	from, until, err := e.Converter.Window(ctx, item.InstrumentID, s.From, s.To, s.TZMode)
	if err != nil {
		res.Err = err
		return res
	}
	res.WindowFrom, res.WindowTo = from, until

	src, err := e.Store.GetBars(ctx, s.DataProvider, item.InstrumentID, item.SourceResolution, from, until)
	if err != nil {
		res.Err = fmt.Errorf("read %s bars: %w", item.SourceResolution, err)
		return res
	}
	res.SourceCount = len(src)
	if len(src) == 0 {
		return res
	}

	out, err := resample.Resample(src, item.SourceResolution, to, from, until)
	if err != nil {
		res.Err = err
		return res
	}

	deleted, err := e.Store.DeleteBars(ctx, s.DataProvider, item.InstrumentID, to, from, until)
	if err != nil {
		res.Err = fmt.Errorf("delete %s bars: %w", to, err)
		return res
	}
	res.DeletedCount = deleted

	if err := e.Store.WriteBars(ctx, s.DataProvider, item.InstrumentID, to, out); err != nil {
		res.Err = fmt.Errorf("write %s bars: %w", to, err)
		return res
	}
	res.ProducedCount = len(out)
	return res
}
