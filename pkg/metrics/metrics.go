package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "elasticpool"

// ControllerMetrics fleet controller collectors, a nil receiver is a no-op
type ControllerMetrics struct {
	queueSample  prometheus.Gauge
	runningUnits prometheus.Gauge
	desiredUnits prometheus.Gauge
	launched     prometheus.Counter
	terminated   prometheus.Counter
	tickFailures prometheus.Counter
	tickDuration prometheus.Histogram
}

// NewControllerMetrics creates and registers controller collectors
func NewControllerMetrics(reg prometheus.Registerer) *ControllerMetrics {
	m := &ControllerMetrics{
		queueSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "queue_sample",
			Help: "Messages observed by the last queue depth sample",
		}),
		runningUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "running_units",
			Help: "Pending or running fleet units seen by the last tick",
		}),
		desiredUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "controller", Name: "desired_units",
			Help: "Desired capacity computed by the last tick",
		}),
		launched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "controller", Name: "units_launched_total",
			Help: "Fleet units launched",
		}),
		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "controller", Name: "units_terminated_total",
			Help: "Fleet units terminated by scale-in",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "controller", Name: "tick_failures_total",
			Help: "Ticks aborted by a queue or fleet error",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "controller", Name: "tick_duration_seconds",
			Help:    "Time spent in one control loop tick",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}
	reg.MustRegister(m.queueSample, m.runningUnits, m.desiredUnits, m.launched, m.terminated, m.tickFailures, m.tickDuration)
	return m
}

// ObserveDecision records the inputs and output of one tick
func (m *ControllerMetrics) ObserveDecision(queueLength, running, desired int) {
	if m == nil {
		return
	}
	m.queueSample.Set(float64(queueLength))
	m.runningUnits.Set(float64(running))
	m.desiredUnits.Set(float64(desired))
}

// Launched counts launched units
func (m *ControllerMetrics) Launched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.launched.Add(float64(n))
}

// Terminated counts terminated units
func (m *ControllerMetrics) Terminated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.terminated.Add(float64(n))
}

// TickFailed counts an aborted tick
func (m *ControllerMetrics) TickFailed() {
	if m == nil {
		return
	}
	m.tickFailures.Inc()
}

// ObserveTick records tick duration
func (m *ControllerMetrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// WorkerMetrics worker collectors, a nil receiver is a no-op
type WorkerMetrics struct {
	jobs      *prometheus.CounterVec
	inference prometheus.Histogram
	phase     *prometheus.GaugeVec
}

// NewWorkerMetrics creates and registers worker collectors
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_total",
			Help: "Jobs handled by outcome",
		}, []string{"outcome"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "inference_duration_seconds",
			Help:    "Classifier latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "phase",
			Help: "1 for the current worker lifecycle phase",
		}, []string{"phase"}),
	}
	reg.MustRegister(m.jobs, m.inference, m.phase)
	return m
}

// JobDone counts a job by outcome
func (m *WorkerMetrics) JobDone(outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
}

// ObserveInference records classifier latency
func (m *WorkerMetrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inference.Observe(d.Seconds())
}

// SetPhase marks phase as current
func (m *WorkerMetrics) SetPhase(phase string) {
	if m == nil {
		return
	}
	m.phase.Reset()
	m.phase.WithLabelValues(phase).Set(1)
}

// IngressMetrics ingress collectors, a nil receiver is a no-op
type IngressMetrics struct {
	submissions *prometheus.CounterVec
}

// NewIngressMetrics creates and registers ingress collectors
func NewIngressMetrics(reg prometheus.Registerer) *IngressMetrics {
	m := &IngressMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingress", Name: "submissions_total",
			Help: "Submissions by result",
		}, []string{"status"}),
	}
	reg.MustRegister(m.submissions)
	return m
}

// Submitted counts a submission by status (accepted, rejected, failed)
func (m *IngressMetrics) Submitted(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

// Handler serves the registry in Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
