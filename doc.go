// Package studyflow orchestrates per-user study sessions for a chat
// front-end that talks to two slow, loosely structured generative
// back-ends: a planner that produces a study plan document, and a content
// service that produces summaries and quizzes.
//
// # Sessions
//
// Every user has a session made of three records in a shared key-value
// store (Redis in production):
//
//   - the state, one of IDLE, PLANNING, READY and QUIZZING
//   - the context: topic, level, plan document and calendar metadata
//   - the active quiz, stored as a single JSON blob
//
// Each record carries its own expiry (48 hours, 7 days and 2 hours by
// default). A missing or expired state reads as IDLE, so an abandoned
// session always ends up somewhere safe.
//
// # State machine
//
// All state changes go through a guarded transition. Operations that must
// not overlap (planning, starting a quiz) claim the session with an atomic
// compare-and-swap when the store supports it; a second caller observes the
// new state and receives a StateConflictError. Legal moves:
//
//	IDLE     -> PLANNING
//	PLANNING -> READY | IDLE
//	READY    -> PLANNING | QUIZZING
//	QUIZZING -> READY
//
// # Upstream calls
//
// The planner is retried on transient failures (timeouts, connection errors,
// 5xx) with exponential backoff; 4xx answers are returned as business
// errors. When every attempt fails the caller still gets a stub plan so the
// user can continue. Summaries and quizzes are attempted once and replaced
// by placeholders on any failure. Responses are walked generically: the
// text or question list may be nested anywhere in the payload.
//
// # Orchestrator
//
// Orchestrator is the entry point. Build one with New:
//
//	orch, err := studyflow.New().
//	    WithRedis(client).
//	    WithEndpoints(studyflow.Endpoints{PlannerURL: p, SummaryURL: s, QuizURL: q}).
//	    WithObserver(studyflow.NewLoggingObserver(logger)).
//	    Build()
//
// or use NewInMemoryOrchestrator for tests. Service wires a complete
// deployment from configuration, including the HTTP API, Prometheus
// metrics, RabbitMQ events and the progress recorder (SQLite, PostgreSQL,
// MongoDB or memory).
//
// # Observability
//
// Observer receives transitions, refused operations, upstream attempts,
// fallbacks and completed quizzes. LoggingObserver, BasicMetrics and
// CompositeObserver are provided; the service adds Prometheus and RabbitMQ
// observers.
package studyflow
