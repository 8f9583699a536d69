package studyflow

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/studyflow/internal/engine"
	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/internal/progress"
	"github.com/petrijr/studyflow/internal/upstream"
)

// Builder provides a fluent API for assembling an Orchestrator:
//
//	orch, err := studyflow.New().
//	    WithRedis(client).
//	    WithEndpoints(studyflow.Endpoints{PlannerURL: p, SummaryURL: s, QuizURL: q}).
//	    WithPlannerRetry(studyflow.Retry(3).WithExponentialBackoff(time.Second, 2, 4*time.Second)).
//	    WithObserver(studyflow.NewLoggingObserver(logger)).
//	    Build()
type Builder struct {
	store     persistence.Store
	endpoints Endpoints
	client    *http.Client
	timeout   time.Duration
	retry     RetryPolicy
	keyPrefix string
	stateTTL  time.Duration
	ctxTTL    time.Duration
	quizTTL   time.Duration
	recorder  progress.Recorder
	observer  Observer
	logger    *slog.Logger

	planner engine.Planner
	content engine.Content
}

// New creates a Builder with the default timeouts, TTLs and retry policy.
func New() *Builder {
	return &Builder{
		timeout: upstream.DefaultTimeout,
		retry:   upstream.DefaultPlannerRetry,
	}
}

// WithStore sets the session store.
func (b *Builder) WithStore(s persistence.Store) *Builder {
	b.store = s
	return b
}

// WithMemoryStore keeps sessions in process memory.
func (b *Builder) WithMemoryStore() *Builder {
	b.store = persistence.NewInMemoryStore()
	return b
}

// WithRedis stores sessions in Redis through client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.store = persistence.NewRedisStore(client)
	return b
}

// WithEndpoints sets the planner and content URLs.
func (b *Builder) WithEndpoints(ep Endpoints) *Builder {
	b.endpoints = ep
	return b
}

// WithHTTPClient sets the client used for upstream calls.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.client = c
	return b
}

// WithTimeout bounds every upstream call.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// WithPlannerRetry sets the planner retry policy.
func (b *Builder) WithPlannerRetry(r RetryBuilder) *Builder {
	b.retry = r.Policy()
	return b
}

// WithKeyPrefix namespaces the store keys.
func (b *Builder) WithKeyPrefix(prefix string) *Builder {
	b.keyPrefix = prefix
	return b
}

// WithTTLs overrides the state, context and quiz expiries. Zero keeps the
// default for that record.
func (b *Builder) WithTTLs(state, sessionCtx, quiz time.Duration) *Builder {
	b.stateTTL, b.ctxTTL, b.quizTTL = state, sessionCtx, quiz
	return b
}

// WithRecorder sets where finished quizzes are recorded.
func (b *Builder) WithRecorder(r progress.Recorder) *Builder {
	b.recorder = r
	return b
}

// WithObserver sets the observer notified of transitions, upstream calls
// and completed quizzes.
func (b *Builder) WithObserver(obs Observer) *Builder {
	b.observer = obs
	return b
}

// WithLogger sets the logger of the orchestrator and upstream clients.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// withBackends replaces the HTTP clients; used by tests.
func (b *Builder) withBackends(p engine.Planner, c engine.Content) *Builder {
	b.planner, b.content = p, c
	return b
}

// Build validates the configuration and returns the Orchestrator.
func (b *Builder) Build() (Orchestrator, error) {
	if b.store == nil {
		return nil, errors.New("studyflow: a session store is required")
	}

	planner := b.planner
	if planner == nil {
		if b.endpoints.PlannerURL == "" {
			return nil, errors.New("studyflow: planner url is required")
		}
		planner = upstream.NewPlannerClient(upstream.PlannerConfig{
			URL:      b.endpoints.PlannerURL,
			Client:   b.client,
			Timeout:  b.timeout,
			Retry:    b.retry,
			Observer: b.observer,
			Logger:   b.logger,
		})
	}
	content := b.content
	if content == nil {
		if b.endpoints.SummaryURL == "" || b.endpoints.QuizURL == "" {
			return nil, errors.New("studyflow: summary and quiz urls are required")
		}
		content = upstream.NewContentClient(upstream.ContentConfig{
			SummaryURL: b.endpoints.SummaryURL,
			QuizURL:    b.endpoints.QuizURL,
			Client:     b.client,
			Timeout:    b.timeout,
			Observer:   b.observer,
			Logger:     b.logger,
		})
	}

	return engine.NewOrchestrator(engine.Config{
		Store:      b.store,
		KeyPrefix:  b.keyPrefix,
		StateTTL:   b.stateTTL,
		ContextTTL: b.ctxTTL,
		QuizTTL:    b.quizTTL,
		Planner:    planner,
		Content:    content,
		Recorder:   b.recorder,
		Observer:   b.observer,
		Logger:     b.logger,
	}), nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() Orchestrator {
	o, err := b.Build()
	if err != nil {
		panic(err)
	}
	return o
}
