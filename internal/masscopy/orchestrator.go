package masscopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"barcopy/internal/metrics"
	"barcopy/internal/model"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

var (
	ErrAlreadyRunning  = errors.New("masscopy: a run is already in progress")
	ErrNoDataProvider  = errors.New("masscopy: data provider is empty")
	ErrNoStagesEnabled = errors.New("masscopy: no stage enabled")
	ErrInvalidWindow   = errors.New("masscopy: invalid window")
)

// StateKind is the coarse phase of the orchestrator.
type StateKind int

const (
	Idle StateKind = iota
	Building
	Running
	Complete
	Failed
)

// State is what Status reports. Stage is meaningful only while Running.
type State struct {
	Kind  StateKind
	Stage int
}

func (s State) String() string {
	switch s.Kind {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Running:
		return "running " + Transitions[s.Stage].String()
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s.Kind))
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithProgress sets the channel receiving per-item progress. Sends never block.
func WithProgress(ch chan<- ProgressUpdate) Option { return func(o *Orchestrator) { o.progress = ch } }

// WithReportDir makes every finished run write its report into dir.
func WithReportDir(dir string) Option { return func(o *Orchestrator) { o.reportDir = dir } }

func WithHeartbeat(d time.Duration) Option { return func(o *Orchestrator) { o.heartbeat = d } }

// WithMaxWorkers caps ThreadCount. Values below 1 mean GOMAXPROCS.
func WithMaxWorkers(n int) Option { return func(o *Orchestrator) { o.maxWorkers = n } }

// Orchestrator runs at most one mass copy at a time.
type Orchestrator struct {
	store      storage.Storage
	conv       *window.Converter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	progress   chan<- ProgressUpdate
	reportDir  string
	heartbeat  time.Duration
	maxWorkers int

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	last    *Report
}

func New(store storage.Storage, conv *window.Converter, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store, conv: conv, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates settings and launches a run in the background. The returned channel
// yields exactly one report and is then closed.
func (o *Orchestrator) Start(ctx context.Context, s Settings, instruments []string) (<-chan *Report, error) {
	if s.DataProvider == "" {
		return nil, ErrNoDataProvider
	}
	if !s.AnyEnabled() {
		return nil, ErrNoStagesEnabled
	}
	if err := window.ValidateRange(s.From, s.To); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})
	o.state = State{Kind: Building}
	done := o.done
	o.mu.Unlock()

	out := make(chan *Report, 1)
	go func() {
		defer cancel()
		r := o.run(runCtx, s, instruments)
		o.mu.Lock()
		o.running = false
		o.last = r
		if r.Status == StatusFailed {
			o.state = State{Kind: Failed}
		} else {
			o.state = State{Kind: Complete}
		}
		o.mu.Unlock()
		close(done)
		out <- r
		close(out)
	}()
	return out, nil
}

// Run starts a run and waits for its report.
func (o *Orchestrator) Run(ctx context.Context, s Settings, instruments []string) (*Report, error) {
	ch, err := o.Start(ctx, s, instruments)
	if err != nil {
		return nil, err
	}
	return <-ch, nil
}

func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastReport returns the report of the most recent finished run, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Cancel asks the current run to stop after its in-flight items. No-op when idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil && o.running {
		o.cancel()
	}
}

// Wait blocks until the current run finishes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, s Settings, instruments []string) (r *Report) {
	start := time.Now()
	r = &Report{StartedAt: start.UTC()}
	log := o.logger

	defer func() {
		if p := recover(); p != nil {
			log.Error("mass copy panicked", "panic", p)
			r.Status = StatusFailed
			r.Err = fmt.Errorf("panic: %v", p)
		}
		r.Elapsed = time.Since(start)
		o.metrics.RunFinished(string(r.Status))
		log.Info("mass copy finished", "status", r.Status, "attempted", r.Attempted,
			"success", r.Succeeded, "failed", r.Failed, "cancelled", r.Cancelled, "elapsed", r.Elapsed)
		if len(r.Failures) > 0 {
			log.Warn("failed items", "reasons", joinFailedReasons(r.Failures))
		}
		if o.reportDir != "" {
			if err := WriteReport(o.reportDir, r); err != nil {
				log.Warn("could not write run report", "error", err)
			}
		}
	}()

	b := &Builder{Store: o.store, Converter: o.conv, Logger: log}
	stages, err := b.BuildStages(ctx, instruments, s)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Cancelled before any item ran: a complete run with nothing attempted.
			r.Status = StatusComplete
			r.Cancelled = true
			r.Message = "cancelled: " + context.Cause(ctx).Error()
			return r
		}
		r.Status = StatusFailed
		r.Err = err
		return r
	}
	total := stages.Total()
	if total == 0 {
		r.Status = StatusEmpty
		r.Message = "nothing to copy in the requested window"
		log.Info(r.Message, "instruments", len(instruments))
		return r
	}

	c := &counters{}
	c.total.Store(int64(total))

	hbCtx, stopHB := context.WithCancel(ctx)
	go runHeartbeat(hbCtx, o.heartbeat, c, o.Status, log)

	results := make(chan model.StageResult, 64)
	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		for res := range results {
			if !res.Ok() {
				r.Failures = append(r.Failures, newFailedEntry(res))
			}
		}
	}()
	// Runs before the report defer above, on the panic path too.
	drain := sync.OnceFunc(func() {
		stopHB()
		close(results)
		collect.Wait()
	})
	defer drain()

	ex := &Executor{
		Store:     o.store,
		Converter: o.conv,
		Settings:  s,
		Logger:    log,
		Metrics:   o.metrics,
		Progress:  o.progress,
		OnResult:  func(res model.StageResult) { results <- res },
		counters:  c,
	}
	workers := ClampWorkers(s.ThreadCount, o.maxWorkers)
	log.Info("mass copy started", "items", total, "workers", workers, "provider", s.DataProvider)

	for k, tr := range Transitions {
		if ctx.Err() != nil {
			r.Cancelled = true
			break
		}
		if len(stages[k]) == 0 {
			continue
		}
		o.setState(State{Kind: Running, Stage: k})
		st := ex.RunStage(ctx, NewWorkQueue(stages[k]), tr.From, tr.To, workers)
		log.Info("stage done", "stage", st.Stage, "attempted", st.Attempted,
			"success", st.Succeeded, "failed", st.Failed, "skipped", st.Skipped, "elapsed", st.Elapsed)
		r.Stages = append(r.Stages, st)
		if st.Skipped > 0 {
			r.Cancelled = true
			break
		}
	}
	drain()

	r.Attempted = int(c.attempted.Load())
	r.Succeeded = int(c.succeeded.Load())
	r.Failed = int(c.failed.Load())
	if ctx.Err() != nil {
		r.Cancelled = true
	}
	// A cancelled run still completes, with partial counts.
	r.Status = StatusComplete
	if r.Cancelled {
		r.Message = "cancelled: " + context.Cause(ctx).Error()
	}
	return r
}
