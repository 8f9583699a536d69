// Package httpapi exposes the orchestrator over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/petrijr/studyflow/pkg/api"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Option customizes the router.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics http.Handler
}

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// NewRouter returns a gin engine serving the orchestrator endpoints.
func NewRouter(orch api.Orchestrator, opts ...Option) *gin.Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(o.logger))

	h := NewHandler(orch, o.logger)
	r.GET("/health", h.Health)
	r.POST("/study", h.Study)
	r.GET("/summary", h.Summary)
	r.GET("/quiz", h.Quiz)
	r.POST("/quiz/answer", h.Answer)
	r.POST("/quiz/result", h.Result)
	r.GET("/progress", h.Progress)
	r.GET("/session", h.Session)
	if o.metrics != nil {
		r.GET("/metrics", gin.WrapH(o.metrics))
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "http_request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
