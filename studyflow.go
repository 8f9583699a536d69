package studyflow

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/studyflow/internal/upstream"
	"github.com/petrijr/studyflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Orchestrator         = api.Orchestrator
	UserID               = api.UserID
	State                = api.State
	Level                = api.Level
	StudyRequest         = api.StudyRequest
	PlanInfo             = api.PlanInfo
	Summary              = api.Summary
	QuizSet              = api.QuizSet
	Question             = api.Question
	QuizSession          = api.QuizSession
	QuizResult           = api.QuizResult
	AnswerOutcome        = api.AnswerOutcome
	ProgressInfo         = api.ProgressInfo
	SessionView          = api.SessionView
	RetryPolicy          = api.RetryPolicy
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export session states for convenience.

const (
	StateIdle     = api.StateIdle
	StatePlanning = api.StatePlanning
	StateReady    = api.StateReady
	StateQuizzing = api.StateQuizzing
)

// Re-export study levels.

const (
	LevelBasic        = api.LevelBasic
	LevelIntermediate = api.LevelIntermediate
	LevelAdvanced     = api.LevelAdvanced
)

// Endpoints names the upstream back-ends.
type Endpoints struct {
	PlannerURL string
	SummaryURL string
	QuizURL    string
}

// Orchestrator constructors.
// These wrap the internal packages so external callers never need to
// import them.

// NewInMemoryOrchestrator returns an Orchestrator whose sessions live in
// process memory. Useful for tests and single-process development.
func NewInMemoryOrchestrator(ep Endpoints) Orchestrator {
	return New().WithMemoryStore().WithEndpoints(ep).MustBuild()
}

// NewInMemoryOrchestratorWithObserver returns an in-memory Orchestrator with
// the given Observer.
func NewInMemoryOrchestratorWithObserver(ep Endpoints, obs Observer) Orchestrator {
	return New().WithMemoryStore().WithEndpoints(ep).WithObserver(obs).MustBuild()
}

// NewRedisOrchestrator returns an Orchestrator that keeps sessions in Redis.
// Guarded transitions are atomic.
func NewRedisOrchestrator(client redis.UniversalClient, ep Endpoints) Orchestrator {
	return New().WithRedis(client).WithEndpoints(ep).MustBuild()
}

// NewRedisOrchestratorWithObserver returns a Redis-backed Orchestrator with
// the given Observer.
func NewRedisOrchestratorWithObserver(client redis.UniversalClient, ep Endpoints, obs Observer) Orchestrator {
	return New().WithRedis(client).WithEndpoints(ep).WithObserver(obs).MustBuild()
}

// Convenience helpers that just forward to the underlying Orchestrator.

// StartPlanning starts a study plan for req.UserID.
func StartPlanning(ctx context.Context, o Orchestrator, req StudyRequest) (PlanInfo, error) {
	return o.StartPlanning(ctx, req)
}

// StartQuiz opens a quiz of count questions (0 selects the default).
func StartQuiz(ctx context.Context, o Orchestrator, user UserID, topic string, count int) (QuizSet, error) {
	return o.StartQuiz(ctx, user, topic, count)
}

// Answer grades choice against the current question of the user's quiz.
func Answer(ctx context.Context, o Orchestrator, user UserID, choice int) (AnswerOutcome, error) {
	return o.AnswerQuestion(ctx, user, choice)
}

// StubPlan returns the plan used when the planner cannot be reached.
func StubPlan() PlanInfo {
	return upstream.StubPlan()
}
