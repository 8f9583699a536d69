package api

import "time"

// RetryPolicy controls how an upstream call is retried on transient failure.
// MaxAttempts includes the first attempt. For example:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// InitialBackoff is the delay before the first retry. Each following delay
// is multiplied by BackoffMultiplier (2.0 when <= 0) and capped at
// MaxBackoff when that is > 0.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Attempts returns MaxAttempts normalized to at least 1.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before retry number n (1-based: n=1 is the wait
// after the first failed attempt).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := p.InitialBackoff
	for i := 1; i < n; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}
