package studyflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/studyflow/internal/config"
	"github.com/petrijr/studyflow/internal/events"
	"github.com/petrijr/studyflow/internal/httpapi"
	"github.com/petrijr/studyflow/internal/metrics"
	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/internal/progress"
)

// maxPlannerBackoff caps the delay between planner attempts.
const maxPlannerBackoff = 4 * time.Second

// Service bundles everything a deployment needs: the session store, the
// progress recorder, the observers, the Orchestrator and its HTTP handler.
//
// Typical usage:
//
//	cfg, _ := config.Load("studyflow.hcl")
//	svc, err := studyflow.NewService(ctx, cfg, logger)
//	if err != nil { ... }
//	defer svc.Close(context.Background())
//	err = svc.Serve(ctx) // returns after ctx is cancelled and the server drained
type Service struct {
	// Orchestrator serves the session operations.
	Orchestrator Orchestrator

	// Handler is the HTTP API, including /metrics.
	Handler http.Handler

	// Metrics is the Prometheus observer attached to the Orchestrator.
	Metrics *metrics.Observer

	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *events.Dispatcher
	closers    []func(context.Context) error

	mu     sync.Mutex
	closed bool
}

// NewService wires a Service from cfg. Connections opened before a failure
// are released before the error is returned.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (svc *Service, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close(context.WithoutCancel(ctx))
		}
	}()

	store, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}

	recorder, closeRecorder, err := progress.Open(ctx, cfg.ProgressDriver, cfg.ProgressDSN)
	if err != nil {
		return nil, fmt.Errorf("open progress recorder: %w", err)
	}
	s.closers = append(s.closers, closeRecorder)

	s.Metrics = metrics.NewObserver()
	observers := []Observer{NewLoggingObserver(logger), s.Metrics}

	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return pub.Close() })

		s.dispatcher = events.NewDispatcher(pub, 1024, logger)
		if err := s.dispatcher.Start(context.WithoutCancel(ctx), 1); err != nil {
			return nil, err
		}
		observers = append(observers, s.dispatcher)
	}

	s.Orchestrator, err = New().
		WithStore(store).
		WithEndpoints(Endpoints{PlannerURL: cfg.PlannerURL, SummaryURL: cfg.SummaryURL, QuizURL: cfg.QuizURL}).
		WithTimeout(cfg.HTTPTimeout).
		WithPlannerRetry(Retry(cfg.PlannerAttempts).WithExponentialBackoff(cfg.PlannerBackoff, 2.0, maxPlannerBackoff)).
		WithKeyPrefix(cfg.KeyPrefix).
		WithTTLs(cfg.StateTTL, cfg.ContextTTL, cfg.QuizTTL).
		WithRecorder(recorder).
		WithObserver(NewCompositeObserver(observers...)).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}

	s.Handler = httpapi.NewRouter(s.Orchestrator,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(s.Metrics.Handler()),
	)
	return s, nil
}

func (s *Service) openStore(ctx context.Context) (persistence.Store, error) {
	if s.cfg.StoreDriver == config.StoreMemory {
		s.logger.Warn("using the in-memory session store; sessions are lost on restart")
		return persistence.NewInMemoryStore(), nil
	}

	opts, err := redis.ParseURL(s.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	s.closers = append(s.closers, func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return persistence.NewRedisStore(client), nil
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Service) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Service) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Planning may legitimately take the whole upstream budget.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTPTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops event publishing and releases every connection. It is safe
// to call more than once.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
