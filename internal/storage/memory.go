package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"barcopy/internal/model"
)

type seriesKey struct {
	provider   string
	instrument string
	res        model.Resolution
}

// Memory keeps every series in process memory.
type Memory struct {
	mu     sync.RWMutex
	series map[seriesKey][]model.Bar
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{series: make(map[seriesKey][]model.Bar)}
}

func (m *Memory) GetBarCount(_ context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.series[seriesKey{provider, instrument, res}] {
		if inRange(b.Timestamp, from, to) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetBars(_ context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Bar
	for _, b := range m.series[seriesKey{provider, instrument, res}] {
		if inRange(b.Timestamp, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) DeleteBars(_ context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seriesKey{provider, instrument, res}
	kept, removed := removeRange(m.series[k], from, to)
	m.series[k] = kept
	return removed, nil
}

func (m *Memory) WriteBars(_ context.Context, provider, instrument string, res model.Resolution, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seriesKey{provider, instrument, res}
	m.series[k] = merge(m.series[k], bars, res)
	return nil
}

func removeRange(bars []model.Bar, from, to time.Time) ([]model.Bar, int) {
	kept := bars[:0:0]
	for _, b := range bars {
		if !inRange(b.Timestamp, from, to) {
			kept = append(kept, b)
		}
	}
	return kept, len(bars) - len(kept)
}

// merge upserts incoming bars by timestamp and keeps the series sorted.
func merge(existing, incoming []model.Bar, res model.Resolution) []model.Bar {
	byTS := make(map[int64]int, len(existing))
	out := make([]model.Bar, 0, len(existing)+len(incoming))
	for _, b := range existing {
		byTS[b.Timestamp.UnixNano()] = len(out)
		out = append(out, b)
	}
	for _, b := range incoming {
		b.Resolution = res
		b.Timestamp = b.Timestamp.UTC()
		if i, ok := byTS[b.Timestamp.UnixNano()]; ok {
			out[i] = b
			continue
		}
		byTS[b.Timestamp.UnixNano()] = len(out)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
