package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Upstream call names reported to observers.
const (
	CallPlan    = "plan"
	CallSummary = "summary"
	CallQuiz    = "quiz"
)

// Observer receives callbacks from the orchestrator for logging, metrics
// and event publishing.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay the user's request.
type Observer interface {
	// OnTransition is called after a state change was written to the store.
	OnTransition(ctx context.Context, user UserID, from, to State)

	// OnTransitionRejected is called when an operation was refused because
	// the session was not in one of the allowed states.
	OnTransitionRejected(ctx context.Context, user UserID, op string, allowed []State, actual State)

	// OnUpstreamCall is called after every attempt against a back-end,
	// for both successes and failures (err != nil). attempt is 1-based.
	OnUpstreamCall(ctx context.Context, call string, attempt int, err error, duration time.Duration)

	// OnFallback is called when a deterministic substitute result was
	// returned instead of the back-end's answer.
	OnFallback(ctx context.Context, call string, reason error)

	// OnQuizCompleted is called once a quiz result has been recorded.
	OnQuizCompleted(ctx context.Context, user UserID, result QuizResult)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnTransition(ctx context.Context, user UserID, from, to State) {}
func (NoopObserver) OnTransitionRejected(ctx context.Context, user UserID, op string, allowed []State, actual State) {
}
func (NoopObserver) OnUpstreamCall(ctx context.Context, call string, attempt int, err error, d time.Duration) {
}
func (NoopObserver) OnFallback(ctx context.Context, call string, reason error)           {}
func (NoopObserver) OnQuizCompleted(ctx context.Context, user UserID, result QuizResult) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, user UserID, from, to State) {
	for _, o := range c.observers {
		o.OnTransition(ctx, user, from, to)
	}
}

func (c *CompositeObserver) OnTransitionRejected(ctx context.Context, user UserID, op string, allowed []State, actual State) {
	for _, o := range c.observers {
		o.OnTransitionRejected(ctx, user, op, allowed, actual)
	}
}

func (c *CompositeObserver) OnUpstreamCall(ctx context.Context, call string, attempt int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnUpstreamCall(ctx, call, attempt, err, d)
	}
}

func (c *CompositeObserver) OnFallback(ctx context.Context, call string, reason error) {
	for _, o := range c.observers {
		o.OnFallback(ctx, call, reason)
	}
}

func (c *CompositeObserver) OnQuizCompleted(ctx context.Context, user UserID, result QuizResult) {
	for _, o := range c.observers {
		o.OnQuizCompleted(ctx, user, result)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs session lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnTransition(ctx context.Context, user UserID, from, to State) {
	o.Logger.InfoContext(ctx, "session_transition",
		slog.String("user_id", string(user)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

func (o *LoggingObserver) OnTransitionRejected(ctx context.Context, user UserID, op string, allowed []State, actual State) {
	o.Logger.InfoContext(ctx, "session_transition_rejected",
		slog.String("user_id", string(user)),
		slog.String("op", op),
		slog.Any("allowed", allowed),
		slog.String("actual", string(actual)),
	)
}

func (o *LoggingObserver) OnUpstreamCall(ctx context.Context, call string, attempt int, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "upstream_call",
		slog.String("call", call),
		slog.Int("attempt", attempt),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnFallback(ctx context.Context, call string, reason error) {
	o.Logger.WarnContext(ctx, "upstream_fallback",
		slog.String("call", call),
		slog.Any("reason", reason),
	)
}

func (o *LoggingObserver) OnQuizCompleted(ctx context.Context, user UserID, result QuizResult) {
	o.Logger.InfoContext(ctx, "quiz_completed",
		slog.String("user_id", string(user)),
		slog.String("topic", result.Topic),
		slog.Int("correct", result.Correct),
		slog.Int("total", result.Total),
		slog.Any("weak_topics", result.WeakTopics),
	)
}

// BasicMetrics collects simple counters and aggregate upstream latency.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	transitions        atomic.Int64
	rejections         atomic.Int64
	upstreamCalls      atomic.Int64
	upstreamFailures   atomic.Int64
	fallbacks          atomic.Int64
	quizzesCompleted   atomic.Int64
	totalUpstreamNanos atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Transitions      int64
	Rejections       int64
	UpstreamCalls    int64
	UpstreamFailures int64
	Fallbacks        int64
	QuizzesCompleted int64

	AvgUpstreamDuration time.Duration
}

func (m *BasicMetrics) OnTransition(ctx context.Context, user UserID, from, to State) {
	m.transitions.Add(1)
}

func (m *BasicMetrics) OnTransitionRejected(ctx context.Context, user UserID, op string, allowed []State, actual State) {
	m.rejections.Add(1)
}

func (m *BasicMetrics) OnUpstreamCall(ctx context.Context, call string, attempt int, err error, d time.Duration) {
	m.upstreamCalls.Add(1)
	m.totalUpstreamNanos.Add(d.Nanoseconds())
	if err != nil {
		m.upstreamFailures.Add(1)
	}
}

func (m *BasicMetrics) OnFallback(ctx context.Context, call string, reason error) {
	m.fallbacks.Add(1)
}

func (m *BasicMetrics) OnQuizCompleted(ctx context.Context, user UserID, result QuizResult) {
	m.quizzesCompleted.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	calls := m.upstreamCalls.Load()
	totalNs := m.totalUpstreamNanos.Load()

	var avg time.Duration
	if calls > 0 {
		avg = time.Duration(totalNs / calls)
	}

	return BasicMetricsSnapshot{
		Transitions:         m.transitions.Load(),
		Rejections:          m.rejections.Load(),
		UpstreamCalls:       calls,
		UpstreamFailures:    m.upstreamFailures.Load(),
		Fallbacks:           m.fallbacks.Load(),
		QuizzesCompleted:    m.quizzesCompleted.Load(),
		AvgUpstreamDuration: avg,
	}
}
