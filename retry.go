package studyflow

import (
	"time"

	"github.com/petrijr/studyflow/internal/upstream"
)

// RetryBuilder configures how the planner client retries transient
// failures (transport errors, timeouts, 5xx responses). Rejections from
// the planner are never retried, whatever the policy.
type RetryBuilder struct {
	policy RetryPolicy
}

// PlannerRetry starts from the default planner policy: two attempts, the
// retry waiting 500ms, later waits doubling up to 4s.
func PlannerRetry() RetryBuilder {
	return RetryBuilder{policy: upstream.DefaultPlannerRetry}
}

// Retry is PlannerRetry with maxAttempts attempts. maxAttempts < 1 means
// the planner is called once.
func Retry(maxAttempts int) RetryBuilder {
	return PlannerRetry().Attempts(maxAttempts)
}

// Attempts sets the total number of planner calls, first one included.
func (r RetryBuilder) Attempts(n int) RetryBuilder {
	if n < 1 {
		n = 1
	}
	r.policy.MaxAttempts = n
	return r
}

// WithExponentialBackoff waits initial before the first retry and
// multiplies the wait by multiplier after each one, up to max.
// A multiplier below 1 doubles; max <= 0 leaves the waits uncapped.
//
//	Retry(3).WithExponentialBackoff(time.Second, 2, 4*time.Second)
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	if multiplier < 1 {
		multiplier = 2.0
	}
	r.policy.InitialBackoff = initial
	r.policy.BackoffMultiplier = multiplier
	r.policy.MaxBackoff = max
	return r
}

// WithConstantBackoff waits delay before every retry.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	r.policy.InitialBackoff = delay
	r.policy.BackoffMultiplier = 1.0
	r.policy.MaxBackoff = delay
	return r
}

// NoBackoff retries straight away.
func (r RetryBuilder) NoBackoff() RetryBuilder {
	r.policy.InitialBackoff = 0
	r.policy.BackoffMultiplier = 1.0
	r.policy.MaxBackoff = 0
	return r
}

// Budget is the longest the planner client can spend sleeping between
// attempts. Call time is not included.
func (r RetryBuilder) Budget() time.Duration {
	var total time.Duration
	for n := 1; n < r.policy.Attempts(); n++ {
		total += r.policy.Delay(n)
	}
	return total
}

// Policy returns the configured policy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
