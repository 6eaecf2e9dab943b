package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	captures     *prometheus.CounterVec
	droppedTicks *prometheus.CounterVec
	submissions  *prometheus.CounterVec
	answerSync   *prometheus.CounterVec
	remaining    prometheus.Gauge
}

// New registers the agent collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_candidate",
			Name:      "captures_total",
			Help:      "Proctoring capture jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		droppedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_candidate",
			Name:      "capture_ticks_dropped_total",
			Help:      "Capture ticks skipped because the camera was busy.",
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_candidate",
			Name:      "submissions_total",
			Help:      "Exam submission attempts by result.",
		}, []string{"result"}),
		answerSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_candidate",
			Name:      "answer_sync_total",
			Help:      "Answers mirrored to the sync socket by result.",
		}, []string{"result"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "exstem_candidate",
			Name:      "exam_time_remaining_seconds",
			Help:      "Seconds left on the exam clock.",
		}),
	}
	reg.MustRegister(m.captures, m.droppedTicks, m.submissions, m.answerSync, m.remaining)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Capture(kind, outcome string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) DroppedTick(kind string) {
	if m == nil {
		return
	}
	m.droppedTicks.WithLabelValues(kind).Inc()
}

func (m *Metrics) Submission(ok bool) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) AnswerSync(ok bool) {
	if m == nil {
		return
	}
	m.answerSync.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetRemaining(seconds int) {
	if m == nil {
		return
	}
	m.remaining.Set(float64(seconds))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
