// Package config loads the service configuration. Values are layered:
// built-in defaults, then an optional HCL file, then a .env file, then the
// process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string

	StoreDriver string
	RedisURL    string
	KeyPrefix   string
	StateTTL    time.Duration
	ContextTTL  time.Duration
	QuizTTL     time.Duration

	PlannerURL      string
	SummaryURL      string
	QuizURL         string
	HTTPTimeout     time.Duration
	PlannerAttempts int
	PlannerBackoff  time.Duration

	ProgressDriver string
	ProgressDSN    string

	AMQPURL      string
	AMQPExchange string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		LogFormat:  "text",

		StoreDriver: StoreRedis,
		RedisURL:    "redis://localhost:6379/0",
		KeyPrefix:   "asb",
		StateTTL:    48 * time.Hour,
		ContextTTL:  7 * 24 * time.Hour,
		QuizTTL:     2 * time.Hour,

		PlannerURL:      "http://localhost:5678/webhook/asb-plan",
		SummaryURL:      "http://localhost:3000/summary_chain",
		QuizURL:         "http://localhost:3000/quiz_chain",
		HTTPTimeout:     30 * time.Second,
		PlannerAttempts: 2,
		PlannerBackoff:  500 * time.Millisecond,

		ProgressDriver: "memory",

		AMQPExchange: "studyflow.events",
	}
}

// Load builds the configuration. path names an optional HCL file; an empty
// path skips it. A missing .env file in the working directory is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	str("STORE_DRIVER", &c.StoreDriver)
	str("REDIS_URL", &c.RedisURL)
	str("KEY_PREFIX", &c.KeyPrefix)
	dur("STATE_TTL", &c.StateTTL)
	dur("CONTEXT_TTL", &c.ContextTTL)
	dur("QUIZ_TTL", &c.QuizTTL)

	str("PLANNER_URL", &c.PlannerURL)
	str("SUMMARY_URL", &c.SummaryURL)
	str("QUIZ_URL", &c.QuizURL)
	dur("HTTP_TIMEOUT", &c.HTTPTimeout)
	num("PLANNER_ATTEMPTS", &c.PlannerAttempts)
	dur("PLANNER_BACKOFF", &c.PlannerBackoff)

	str("PROGRESS_DRIVER", &c.ProgressDriver)
	str("PROGRESS_DSN", &c.ProgressDSN)

	str("AMQP_URL", &c.AMQPURL)
	str("AMQP_EXCHANGE", &c.AMQPExchange)

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis url is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	for name, raw := range map[string]string{"planner": c.PlannerURL, "summary": c.SummaryURL, "quiz": c.QuizURL} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s url: %w", name, err))
		}
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.PlannerAttempts < 1 {
		errs = append(errs, errors.New("planner attempts must be >= 1"))
	}
	if c.PlannerBackoff < 0 {
		errs = append(errs, errors.New("planner backoff must not be negative"))
	}
	for name, ttl := range map[string]time.Duration{"state": c.StateTTL, "context": c.ContextTTL, "quiz": c.QuizTTL} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s ttl must be positive", name))
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// parseDuration accepts Go durations ("30s", "1m30s") and bare numbers of
// seconds ("30", "2.5").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
