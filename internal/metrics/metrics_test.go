package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ItemDone("minute->hour", true)
	m.ItemDone("minute->hour", true)
	m.ItemDone("minute->hour", false)
	m.BarsWrittenAdd("hour", 24)
	m.RunFinished("complete")
	m.ObserveStage("minute->hour", 0.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Items.WithLabelValues("minute->hour", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Items.WithLabelValues("minute->hour", "failure")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.BarsWritten.WithLabelValues("hour")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("complete")))
}

func TestMetrics_RegisterTwiceReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.ItemDone("day->week", true)
	b.ItemDone("day->week", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Items.WithLabelValues("day->week", "success")))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ItemDone("x", true)
		m.BarsWrittenAdd("hour", 1)
		m.ObserveStage("x", 1)
		m.RunFinished("failed")
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RunFinished("complete")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `barcopy_runs_total{status="complete"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
