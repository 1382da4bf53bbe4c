package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	AnswersChecked   *prometheus.CounterVec
	LessonsCompleted prometheus.Counter
	XPAwarded        prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	RequestCounter   *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polymerlearn_sessions_started_total",
			Help: "Quiz sessions started, including retries.",
		}),
		AnswersChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polymerlearn_answers_checked_total",
			Help: "Answers checked, by correctness.",
		}, []string{"correct"}),
		LessonsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polymerlearn_lessons_completed_total",
			Help: "Finished quiz sessions folded into progress.",
		}),
		XPAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polymerlearn_xp_awarded_total",
			Help: "XP awarded across all students.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.SessionsStarted,
		m.AnswersChecked,
		m.LessonsCompleted,
		m.XPAwarded,
		m.RequestDuration,
		m.RequestCounter,
	)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) AnswerChecked(correct bool) {
	if m == nil {
		return
	}
	m.AnswersChecked.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) LessonCompleted(earnedXP int) {
	if m == nil {
		return
	}
	m.LessonsCompleted.Inc()
	m.XPAwarded.Add(float64(earnedXP))
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
