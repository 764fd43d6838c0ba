package masscopy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"barcopy/internal/model"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

var (
	day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	day3 = time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC)
)

var errInjected = errors.New("injected read failure")

// bars returns n bars of res spaced by step, starting at start.
func bars(res model.Resolution, start time.Time, step time.Duration, n int) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		p := decimal.NewFromInt(int64(100 + i%7))
		out[i] = model.Bar{
			Resolution: res,
			Timestamp:  start.Add(time.Duration(i) * step),
			Open:       p,
			High:       p.Add(decimal.NewFromInt(2)),
			Low:        p.Sub(decimal.NewFromInt(2)),
			Close:      p.Add(decimal.NewFromInt(1)),
			Volume:     decimal.NewFromInt(5),
		}
	}
	return out
}

// seedMinutes writes one minute bar every 30 minutes over day0..day3 (144 bars).
func seedMinutes(t *testing.T, s storage.Storage, instruments ...string) {
	t.Helper()
	for _, inst := range instruments {
		require.NoError(t, s.WriteBars(context.Background(), "p", inst, model.Minute,
			bars(model.Minute, day0, 30*time.Minute, 144)))
	}
}

func allStages() Settings {
	return Settings{
		From: day0, To: day3, TZMode: window.UTC, ThreadCount: 4,
		EnableHour: true, EnableDay: true, EnableWeek: true, EnableMonth: true,
		DataProvider: "p",
	}
}

// probeStore wraps Memory with fault injection and an ordered event log.
type probeStore struct {
	*storage.Memory

	failGet  map[string]bool
	panicGet map[string]bool
	delay    time.Duration

	seq atomic.Int64
	mu  sync.Mutex
	// lastWrite[res] is the seq of the last WriteBars(res) to finish;
	// firstRead[res] is the seq of the first GetBars(res) to start.
	lastWrite map[model.Resolution]int64
	firstRead map[model.Resolution]int64
}

func newProbeStore() *probeStore {
	return &probeStore{
		Memory:    storage.NewMemory(),
		failGet:   map[string]bool{},
		panicGet:  map[string]bool{},
		lastWrite: map[model.Resolution]int64{},
		firstRead: map[model.Resolution]int64{},
	}
}

func (p *probeStore) GetBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error) {
	n := p.seq.Add(1)
	p.mu.Lock()
	if _, ok := p.firstRead[res]; !ok {
		p.firstRead[res] = n
	}
	p.mu.Unlock()
	if p.panicGet[instrument] {
		panic("boom " + instrument)
	}
	if p.failGet[instrument] {
		return nil, errInjected
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.Memory.GetBars(ctx, provider, instrument, res, from, to)
}

func (p *probeStore) WriteBars(ctx context.Context, provider, instrument string, res model.Resolution, b []model.Bar) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	err := p.Memory.WriteBars(ctx, provider, instrument, res, b)
	n := p.seq.Add(1)
	p.mu.Lock()
	p.lastWrite[res] = n
	p.mu.Unlock()
	return err
}

// gateStore blocks the first GetBars until release is closed.
type gateStore struct {
	*storage.Memory
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGateStore() *gateStore {
	return &gateStore{Memory: storage.NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateStore) GetBars(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error) {
	first := false
	g.once.Do(func() { first = true; close(g.started) })
	if first {
		<-g.release
	}
	return g.Memory.GetBars(ctx, provider, instrument, res, from, to)
}

// countGateStore blocks the first GetBarCount until release is closed.
type countGateStore struct {
	*storage.Memory
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newCountGateStore() *countGateStore {
	return &countGateStore{Memory: storage.NewMemory(), started: make(chan struct{}), release: make(chan struct{})}
}

func (g *countGateStore) GetBarCount(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	first := false
	g.once.Do(func() { first = true; close(g.started) })
	if first {
		<-g.release
	}
	return g.Memory.GetBarCount(ctx, provider, instrument, res, from, to)
}

// zoneLookup resolves the listed instruments and reports the rest as unknown.
type zoneLookup map[string]*time.Location

func (z zoneLookup) Resolve(_ context.Context, instrumentID string) (*time.Location, error) {
	if loc, ok := z[instrumentID]; ok {
		return loc, nil
	}
	return nil, window.ErrExchangeNotFound
}
