package masscopy

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barcopy/internal/metrics"
	"barcopy/internal/model"
	"barcopy/internal/storage"
	"barcopy/internal/window"
)

func TestOrchestrator_EmptyRun(t *testing.T) {
	o := New(storage.NewMemory(), window.NewConverter(nil))
	r, err := o.Run(context.Background(), allStages(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusEmpty, r.Status)
	assert.Zero(t, r.Attempted)
	assert.NoError(t, r.Err)
	assert.NotEmpty(t, r.Message)
	assert.Equal(t, Complete, o.Status().Kind)
	assert.False(t, o.IsRunning())
}

func TestOrchestrator_ConfigErrors(t *testing.T) {
	o := New(storage.NewMemory(), window.NewConverter(nil))
	ctx := context.Background()

	s := allStages()
	s.DataProvider = ""
	_, err := o.Start(ctx, s, []string{"A"})
	assert.ErrorIs(t, err, ErrNoDataProvider)

	s = Settings{From: day0, To: day3, DataProvider: "p"}
	_, err = o.Start(ctx, s, []string{"A"})
	assert.ErrorIs(t, err, ErrNoStagesEnabled)

	s = allStages()
	s.From, s.To = day3, day0
	_, err = o.Start(ctx, s, []string{"A"})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.ErrorIs(t, err, window.ErrInvalidRange)

	assert.Equal(t, Idle, o.Status().Kind)
	assert.False(t, o.IsRunning())
}

func TestOrchestrator_FullChain(t *testing.T) {
	ctx := context.Background()
	s := newProbeStore()
	seedMinutes(t, s, "A", "B", "C")
	dir := t.TempDir()

	o := New(s, window.NewConverter(nil), WithReportDir(dir))
	r, err := o.Run(ctx, allStages(), []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, 12, r.Attempted)
	assert.Equal(t, 12, r.Succeeded)
	assert.Zero(t, r.Failed)
	assert.False(t, r.Cancelled)
	assert.Len(t, r.Stages, NumStages)

	want := map[model.Resolution]int{model.Hour: 72, model.Day: 3, model.Week: 1, model.Month: 1}
	for res, n := range want {
		got, err := s.GetBarCount(ctx, "p", "B", res, day0, day3)
		require.NoError(t, err)
		assert.Equal(t, n, got, res.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, ".lastrun.json"))
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "complete", saved["status"])
	assert.NoFileExists(t, filepath.Join(dir, ".lastrun.failed.json"))
	assert.Same(t, r, o.LastReport())
}

func TestOrchestrator_StageBarrier(t *testing.T) {
	s := newProbeStore()
	s.delay = 2 * time.Millisecond
	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	seedMinutes(t, s, ids...)

	set := allStages()
	set.ThreadCount = 8
	o := New(s, window.NewConverter(nil), WithMaxWorkers(8))
	r, err := o.Run(context.Background(), set, ids)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, r.Status)

	// Every write of a stage's output precedes the first read of it by the next stage.
	assert.Less(t, s.lastWrite[model.Hour], s.firstRead[model.Hour])
	assert.Less(t, s.lastWrite[model.Day], s.firstRead[model.Day])
}

func TestOrchestrator_FailuresAreReportedNotFatal(t *testing.T) {
	s := newProbeStore()
	seedMinutes(t, s, "A", "BAD")
	s.failGet["BAD"] = true
	dir := t.TempDir()

	set := allStages()
	set.EnableDay, set.EnableWeek, set.EnableMonth = false, false, false
	o := New(s, window.NewConverter(nil), WithReportDir(dir))
	r, err := o.Run(context.Background(), set, []string{"A", "BAD"})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, 2, r.Attempted)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, []string{"BAD"}, r.FailedInstruments())
	assert.FileExists(t, filepath.Join(dir, ".lastrun.failed.json"))
}

func TestOrchestrator_AlreadyRunningAndCancel(t *testing.T) {
	s := newGateStore()
	ids := []string{"A", "B", "C", "D"}
	seedMinutes(t, s, ids...)
	set := allStages()
	set.ThreadCount = 1

	o := New(s, window.NewConverter(nil))
	ch, err := o.Start(context.Background(), set, ids)
	require.NoError(t, err)
	<-s.started

	assert.True(t, o.IsRunning())
	assert.Equal(t, Running, o.Status().Kind)
	_, err = o.Start(context.Background(), set, ids)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	o.Cancel()
	close(s.release)
	r := <-ch

	assert.True(t, r.Cancelled)
	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, 1, r.Attempted)
	assert.Equal(t, 1, r.Succeeded)
	require.NoError(t, o.Wait(context.Background()))
	assert.False(t, o.IsRunning())

	// Idle again: a new run is accepted.
	_, err = o.Start(context.Background(), set, nil)
	require.NoError(t, err)
	require.NoError(t, o.Wait(context.Background()))
}

func TestProgressWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "progress.json")
	ch := make(chan ProgressUpdate, 2)
	ch <- ProgressUpdate{Processed: 1, Total: 4, Message: "minute->hour A"}
	ch <- ProgressUpdate{Processed: 2, Total: 4, Message: "minute->hour B"}
	close(ch)
	RunProgressWriter(path, ch)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got ProgressUpdate
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, 4, got.Total)
}

func TestJoinFailedReasons(t *testing.T) {
	assert.Empty(t, joinFailedReasons(nil))
	var list []failedEntry
	for i := 0; i < 8; i++ {
		list = append(list, failedEntry{Stage: "minute->hour", Instrument: "X", Reason: "r"})
	}
	assert.Contains(t, joinFailedReasons(list), "(+3 more)")
}

func TestOrchestrator_CancelWhileBuilding(t *testing.T) {
	s := newCountGateStore()
	seedMinutes(t, s, "A", "B")

	o := New(s, window.NewConverter(nil))
	ch, err := o.Start(context.Background(), allStages(), []string{"A", "B"})
	require.NoError(t, err)
	<-s.started
	assert.Equal(t, Building, o.Status().Kind)

	o.Cancel()
	close(s.release)
	r := <-ch

	assert.Equal(t, StatusComplete, r.Status)
	assert.True(t, r.Cancelled)
	assert.NoError(t, r.Err)
	assert.Zero(t, r.Attempted)
	assert.Contains(t, r.Message, "cancelled")
	assert.Equal(t, Complete, o.Status().Kind)
}

func TestOrchestrator_BuildCountErrorFails(t *testing.T) {
	boom := errors.New("db down")
	m := &mockStore{}
	m.On("GetBarCount", mock.Anything, "p", "A", model.Minute, mock.Anything, mock.Anything).Return(0, boom).Once()

	o := New(m, window.NewConverter(nil))
	r, err := o.Run(context.Background(), allStages(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.False(t, r.Cancelled)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, Failed, o.Status().Kind)
}

func TestOrchestrator_ExchangeZoneFailureIsPerInstrument(t *testing.T) {
	ctx := context.Background()
	s := newProbeStore()
	seedMinutes(t, s, "A", "X")
	set := allStages()
	set.TZMode = window.Exchange

	o := New(s, window.NewConverter(zoneLookup{"A": time.UTC}))
	r, err := o.Run(ctx, set, []string{"A", "X"})
	require.NoError(t, err)

	// X is scheduled in every stage through the producer chain and fails in each.
	assert.Equal(t, StatusComplete, r.Status)
	assert.Equal(t, 8, r.Attempted)
	assert.Equal(t, 4, r.Succeeded)
	assert.Equal(t, 4, r.Failed)
	assert.Equal(t, []string{"X"}, r.FailedInstruments())
	for _, f := range r.Failures {
		assert.Contains(t, f.Reason, window.ErrExchangeNotFound.Error())
	}

	want := map[model.Resolution]int{model.Hour: 72, model.Day: 3, model.Week: 1, model.Month: 1}
	for res, n := range want {
		got, err := s.GetBarCount(ctx, "p", "A", res, day0, day3)
		require.NoError(t, err)
		assert.Equal(t, n, got, res.String())
		got, err = s.GetBarCount(ctx, "p", "X", res, day0, day3)
		require.NoError(t, err)
		assert.Zero(t, got, res.String())
	}
}

func TestOrchestrator_PanicOutsideItemsDrainsResults(t *testing.T) {
	s := newProbeStore()
	seedMinutes(t, s, "A", "BAD")
	s.failGet["BAD"] = true
	set := allStages()
	set.EnableDay, set.EnableWeek, set.EnableMonth = false, false, false

	// No stage histogram: ObserveStage panics on the run goroutine after the stage drains.
	full := metrics.New(prometheus.NewRegistry())
	m := &metrics.Metrics{Items: full.Items, BarsWritten: full.BarsWritten, Runs: full.Runs}

	o := New(s, window.NewConverter(nil), WithMetrics(m))
	r, err := o.Run(context.Background(), set, []string{"A", "BAD"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, r.Status)
	assert.ErrorContains(t, r.Err, "panic")
	assert.Equal(t, []string{"BAD"}, r.FailedInstruments())
	assert.Equal(t, Failed, o.Status().Kind)
	assert.False(t, o.IsRunning())
	assert.Equal(t, float64(1), testutil.ToFloat64(full.Runs.WithLabelValues(string(StatusFailed))))
}
