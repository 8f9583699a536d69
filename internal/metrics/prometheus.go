// Package metrics exports orchestrator activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/studyflow/pkg/api"
)

const namespace = "studyflow"

// Observer is an api.Observer that records into Prometheus collectors.
type Observer struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	quizzes          prometheus.Counter
	quizScore        prometheus.Histogram
}

var _ api.Observer = (*Observer)(nil)

// NewObserver registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Observer{
		registry: reg,
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Total number of session state transitions",
			},
			[]string{"from", "to"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_conflicts_total",
				Help:      "Operations refused because the session was in the wrong state",
			},
			[]string{"op", "state"},
		),
		upstreamCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_calls_total",
				Help:      "Upstream call attempts",
			},
			[]string{"call", "status"}, // status: ok/error
		),
		upstreamDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_call_duration_seconds",
				Help:      "Time spent in a single upstream call attempt",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"call"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_fallbacks_total",
				Help:      "Upstream results replaced by a local placeholder",
			},
			[]string{"call"},
		),
		quizzes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_completed_total",
			Help:      "Quiz results recorded",
		}),
		quizScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quiz_score_percent",
			Help:      "Distribution of recorded quiz scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}
}

// Registry returns the registry holding the collectors.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

func (o *Observer) OnTransition(ctx context.Context, user api.UserID, from, to api.State) {
	o.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (o *Observer) OnTransitionRejected(ctx context.Context, user api.UserID, op string, allowed []api.State, actual api.State) {
	o.rejections.WithLabelValues(op, string(actual)).Inc()
}

func (o *Observer) OnUpstreamCall(ctx context.Context, call string, attempt int, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.upstreamCalls.WithLabelValues(call, status).Inc()
	o.upstreamDuration.WithLabelValues(call).Observe(d.Seconds())
}

func (o *Observer) OnFallback(ctx context.Context, call string, reason error) {
	o.fallbacks.WithLabelValues(call).Inc()
}

func (o *Observer) OnQuizCompleted(ctx context.Context, user api.UserID, result api.QuizResult) {
	o.quizzes.Inc()
	o.quizScore.Observe(result.Score())
}
