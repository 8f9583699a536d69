package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

const plannerService = "planner"

// StubDocURL is the document reference of the fallback plan.
const StubDocURL = "https://docs.google.com/document/d/FAKE_M2_PLAN"

// DefaultPlannerRetry is used when PlannerConfig.Retry is left zero.
var DefaultPlannerRetry = api.RetryPolicy{
	MaxAttempts:       2,
	InitialBackoff:    500 * time.Millisecond,
	BackoffMultiplier: 2,
	MaxBackoff:        4 * time.Second,
}

// PlannerConfig configures a PlannerClient.
type PlannerConfig struct {
	URL      string
	Client   *http.Client
	Timeout  time.Duration
	Retry    api.RetryPolicy
	Observer api.Observer
	Logger   *slog.Logger
}

// PlannerClient requests study plans.
type PlannerClient struct {
	http     poster
	retry    api.RetryPolicy
	observer api.Observer
	logger   *slog.Logger
}

// NewPlannerClient creates a PlannerClient from cfg.
func NewPlannerClient(cfg PlannerConfig) *PlannerClient {
	retry := cfg.Retry
	if retry.MaxAttempts == 0 && retry.InitialBackoff == 0 {
		retry = DefaultPlannerRetry
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PlannerClient{
		http:     newPoster(plannerService, cfg.URL, cfg.Client, cfg.Timeout),
		retry:    retry,
		observer: obs,
		logger:   logger,
	}
}

// StubPlan is the deterministic plan returned when the planner cannot be
// reached.
func StubPlan() api.PlanInfo {
	return api.PlanInfo{
		DocURL:       StubDocURL,
		CalendarInfo: map[string]any{"created": false, "reason": "stub"},
		Stub:         true,
	}
}

// Plan asks the planner for a plan for req.
//
// Transient failures are retried per the retry policy; once attempts are
// exhausted, or when the answer cannot be decoded, the stub plan is
// returned without error. A 4xx answer is returned as a business
// *api.UpstreamError and a missing document reference as an
// *api.ValidationError; neither is retried.
func (c *PlannerClient) Plan(ctx context.Context, req api.StudyRequest) (api.PlanInfo, error) {
	attempts := c.retry.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		info, err := c.planOnce(ctx, req)
		c.observer.OnUpstreamCall(ctx, api.CallPlan, attempt, err, time.Since(start))
		if err == nil {
			return info, nil
		}
		lastErr = err

		if errors.Is(err, api.ErrUpstreamBusiness) || errors.Is(err, api.ErrValidationFailed) {
			return api.PlanInfo{}, err
		}
		if !isTransient(err) {
			break
		}
		if attempt == attempts {
			break
		}

		delay := c.retry.Delay(attempt)
		c.logger.DebugContext(ctx, "planner call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		if delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.logger.WarnContext(ctx, "planner unavailable, using stub plan",
		slog.String("user", string(req.UserID)),
		slog.Any("error", lastErr),
	)
	c.observer.OnFallback(ctx, api.CallPlan, lastErr)
	return StubPlan(), nil
}

func (c *PlannerClient) planOnce(ctx context.Context, req api.StudyRequest) (api.PlanInfo, error) {
	payload, err := c.http.post(ctx, req)
	if err != nil {
		return api.PlanInfo{}, err
	}
	return parsePlan(payload)
}

// parsePlan selects the plan object out of a response that may be a single
// object or a list of candidates.
func parsePlan(payload Value) (api.PlanInfo, error) {
	plan := selectCandidate(payload)

	docURL := ""
	if f, ok := plan.Get("doc_url"); ok {
		docURL = strings.TrimSpace(f.Text())
	}
	if docURL == "" {
		return api.PlanInfo{}, &api.ValidationError{Field: "doc_url", Reason: "missing from planner response", Upstream: true}
	}

	info := api.PlanInfo{DocURL: docURL}
	if f, ok := plan.Get("calendar_info"); ok {
		info.CalendarInfo = calendarInfo(f)
	}
	return info, nil
}

// selectCandidate returns the first list element whose ok flag is true, or
// the first element when none is. Objects are returned unchanged.
func selectCandidate(payload Value) Value {
	items := payload.Items()
	if payload.Kind() != KindArray {
		return payload
	}
	for _, it := range items {
		it = it.Unwrap()
		if f, ok := it.Get("ok"); ok {
			if b, _ := f.Bool(); b {
				return it
			}
		}
	}
	if len(items) > 0 {
		return items[0].Unwrap()
	}
	return Value{}
}

// calendarInfo accepts an object or a JSON-encoded object. Anything else
// yields nil.
func calendarInfo(v Value) map[string]any {
	v = v.Unwrap()
	if v.Kind() != KindObject {
		return nil
	}
	m, _ := v.Interface().(map[string]any)
	return m
}
