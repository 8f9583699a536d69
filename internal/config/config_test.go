package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"REDIS_URL":        "redis://cache:6379/1",
		"PLANNER_URL":      "https://n8n.example.com/webhook/plan",
		"HTTP_TIMEOUT":     "12.5",
		"PLANNER_ATTEMPTS": "3",
		"PLANNER_BACKOFF":  "250ms",
		"KEY_PREFIX":       "  sf ",
		"QUIZ_TTL":         "",
		"PROGRESS_DRIVER":  "sqlite",
		"AMQP_URL":         "amqp://guest:guest@mq:5672/",
	}))
	require.NoError(t, err)

	require.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	require.Equal(t, "https://n8n.example.com/webhook/plan", cfg.PlannerURL)
	require.Equal(t, 12500*time.Millisecond, cfg.HTTPTimeout)
	require.Equal(t, 3, cfg.PlannerAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.PlannerBackoff)
	require.Equal(t, "sf", cfg.KeyPrefix)
	require.Equal(t, 2*time.Hour, cfg.QuizTTL, "empty values keep the default")
	require.Equal(t, "sqlite", cfg.ProgressDriver)
	require.Equal(t, "amqp://guest:guest@mq:5672/", cfg.AMQPURL)
}

func TestApplyEnv_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"HTTP_TIMEOUT":     "soon",
		"PLANNER_ATTEMPTS": "two",
	}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP_TIMEOUT")
	require.Contains(t, err.Error(), "PLANNER_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StoreDriver = "etcd"
	cfg.PlannerURL = "ftp://planner"
	cfg.QuizURL = ""
	cfg.PlannerAttempts = 0
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{`unknown store driver "etcd"`, "planner url", "quiz url", "planner attempts", "log format"} {
		require.Contains(t, err.Error(), want)
	}

	mem := Default()
	mem.StoreDriver = StoreMemory
	mem.RedisURL = ""
	require.NoError(t, mem.Validate())
}

func TestDecodeHCL(t *testing.T) {
	src := `
listen_addr = ":9090"

log {
  level  = "debug"
  format = "json"
}

store {
  driver     = "memory"
  key_prefix = "sf"
  quiz_ttl   = "30m"
}

planner {
  url      = "https://planner.example.com/plan"
  timeout  = "10s"
  attempts = 4
}

content {
  quiz_url = "https://content.example.com/quiz"
}

progress {
  driver = "postgres"
  dsn    = "postgres://u:p@db/studyflow"
}

events {
  exchange = "sf.events"
}
`
	cfg := Default()
	require.NoError(t, cfg.decodeHCL([]byte(src), "studyflow.hcl"))

	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, "sf", cfg.KeyPrefix)
	require.Equal(t, 30*time.Minute, cfg.QuizTTL)
	require.Equal(t, 48*time.Hour, cfg.StateTTL)
	require.Equal(t, "https://planner.example.com/plan", cfg.PlannerURL)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 4, cfg.PlannerAttempts)
	require.Equal(t, "https://content.example.com/quiz", cfg.QuizURL)
	require.Equal(t, Default().SummaryURL, cfg.SummaryURL)
	require.Equal(t, "postgres", cfg.ProgressDriver)
	require.Equal(t, "sf.events", cfg.AMQPExchange)
}

func TestDecodeHCL_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":          `listen_addr = `,
		"unknown setting": `colour = "blue"`,
		"bad duration":    "planner {\n  timeout = \"later\"\n}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, Default().decodeHCL([]byte(src), "bad.hcl"))
		})
	}
}

func TestLoad_LayersFileDotEnvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "studyflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = \":7070\"\nstore {\n  driver = \"memory\"\n}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PLANNER_ATTEMPTS=5\nLISTEN_ADDR=:6060\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PLANNER_ATTEMPTS") })
	t.Setenv("LISTEN_ADDR", ":5050")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, 5, cfg.PlannerAttempts)
	require.Equal(t, ":5050", cfg.ListenAddr, "the process environment wins over .env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("30")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, d)

	d, err = parseDuration("1m30s")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, d)

	_, err = parseDuration("-1")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)

	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("careful", slog.String("k", "v"))
	require.Contains(t, buf.String(), `"msg":"careful"`)
	require.Contains(t, buf.String(), `"k":"v"`)
}
