package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewControllerMetrics(reg)

	m.ObserveDecision(23, 5, 10)
	m.Launched(5)
	m.Launched(0)
	m.Terminated(2)
	m.TickFailed()
	m.ObserveTick(time.Second)

	assert.Equal(t, 23.0, testutil.ToFloat64(m.queueSample))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.desiredUnits))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.launched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.terminated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickFailures))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var c *ControllerMetrics
	var w *WorkerMetrics
	var i *IngressMetrics
	assert.NotPanics(t, func() {
		c.ObserveDecision(1, 1, 1)
		c.Launched(1)
		c.Terminated(1)
		c.TickFailed()
		c.ObserveTick(time.Second)
		w.JobDone("classified")
		w.ObserveInference(time.Second)
		w.SetPhase("POLLING")
		i.Submitted("accepted")
	})
}

func TestWorkerMetricsPhase(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)

	m.SetPhase("POLLING")
	m.SetPhase("PROCESSING")
	m.JobDone("unknown")

	assert.Equal(t, 1, testutil.CollectAndCount(m.phase))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phase.WithLabelValues("PROCESSING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("unknown")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewIngressMetrics(reg).Submitted("accepted")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `elasticpool_ingress_submissions_total{status="accepted"} 1`))
}
