package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one copy engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Items         *prometheus.CounterVec
	BarsWritten   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
}

// New creates and registers the collectors on r.
// If r == nil, uses prometheus.DefaultRegisterer; collectors already registered are reused.
func New(r prometheus.Registerer) *Metrics {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barcopy", Name: "items_total",
			Help: "Work items processed, by stage and result",
		}, []string{"stage", "result"}),
		BarsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barcopy", Name: "bars_written_total",
			Help: "Resampled bars written, by target resolution",
		}, []string{"resolution"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barcopy", Name: "stage_duration_seconds",
			Help:    "Wall time of one stage from first pop to barrier",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barcopy", Name: "runs_total",
			Help: "Finished mass-copy runs, by final status",
		}, []string{"status"}),
	}
	m.Items = register(r, m.Items)
	m.BarsWritten = register(r, m.BarsWritten)
	m.StageDuration = register(r, m.StageDuration)
	m.Runs = register(r, m.Runs)
	return m
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) C {
	if err := r.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ItemDone(stage string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Items.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) BarsWrittenAdd(res string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BarsWritten.WithLabelValues(res).Add(float64(n))
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}
