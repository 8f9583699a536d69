package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/studyflow/pkg/api"
)

// Handler holds the endpoint implementations.
type Handler struct {
	Orchestrator api.Orchestrator
	logger       *slog.Logger
}

func NewHandler(orch api.Orchestrator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Orchestrator: orch, logger: logger}
}

// userParam accepts a user id given as a JSON string or number.
type userParam string

func (u *userParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*u = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = userParam(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := n.Int64(); err != nil {
		return errors.New("user_id must be an integer or a string")
	}
	*u = userParam(n.String())
	return nil
}

type studyBody struct {
	Topic            string    `json:"topic"`
	Depth            string    `json:"depth"`
	DurationDays     int       `json:"duration_days"`
	DailyTimeMinutes int       `json:"daily_time_minutes"`
	UserID           userParam `json:"user_id"`
}

type answerBody struct {
	UserID userParam `json:"user_id"`
	Choice *int      `json:"choice"`
}

type resultBody struct {
	UserID     userParam `json:"user_id"`
	Topic      string    `json:"topic"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	WeakTopics []string  `json:"weak_topics"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Study(c *gin.Context) {
	var body studyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	info, err := h.Orchestrator.StartPlanning(c.Request.Context(), api.StudyRequest{
		Topic:            body.Topic,
		Depth:            api.Level(body.Depth),
		DurationDays:     body.DurationDays,
		DailyTimeMinutes: body.DailyTimeMinutes,
		UserID:           api.UserID(body.UserID),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) Summary(c *gin.Context) {
	user, ok := queryUser(c)
	if !ok {
		return
	}
	sum, err := h.Orchestrator.FetchSummary(c.Request.Context(), user, c.Query("topic"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) Quiz(c *gin.Context) {
	user, ok := queryUser(c)
	if !ok {
		return
	}
	count := 0
	if raw := c.Query("questions_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "questions_count must be an integer")
			return
		}
		count = n
	}
	set, err := h.Orchestrator.StartQuiz(c.Request.Context(), user, c.Query("topic"), count)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *Handler) Answer(c *gin.Context) {
	var body answerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.Choice == nil {
		badRequest(c, "choice is required")
		return
	}
	out, err := h.Orchestrator.AnswerQuestion(c.Request.Context(), api.UserID(body.UserID), *body.Choice)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Result records a finished quiz. The user id may be given in the query
// string or in the body.
func (h *Handler) Result(c *gin.Context) {
	var body resultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	user := api.UserID(c.Query("user_id"))
	if user == "" {
		user = api.UserID(body.UserID)
	}
	err := h.Orchestrator.RecordQuizResult(c.Request.Context(), user, api.QuizResult{
		Topic:      body.Topic,
		Correct:    body.Correct,
		Total:      body.Total,
		WeakTopics: body.WeakTopics,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Progress(c *gin.Context) {
	user, ok := queryUser(c)
	if !ok {
		return
	}
	info, err := h.Orchestrator.FetchProgress(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) Session(c *gin.Context) {
	user, ok := queryUser(c)
	if !ok {
		return
	}
	view, err := h.Orchestrator.GetSession(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func queryUser(c *gin.Context) (api.UserID, bool) {
	user := strings.TrimSpace(c.Query("user_id"))
	if user == "" {
		badRequest(c, "user_id is required")
		return "", false
	}
	return api.UserID(user), true
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}

// fail maps err to a status code and writes {"detail": ...}.
func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail(err)})
}

// StatusFor returns the HTTP status for an orchestrator error.
func StatusFor(err error) int {
	var vErr *api.ValidationError
	switch {
	case errors.Is(err, api.ErrStateConflict):
		return http.StatusConflict
	case errors.As(err, &vErr):
		if vErr.Upstream {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case errors.Is(err, api.ErrUpstreamBusiness):
		return http.StatusBadGateway
	case errors.Is(err, api.ErrUpstreamTransient):
		return http.StatusGatewayTimeout
	case errors.Is(err, api.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func detail(err error) string {
	var upErr *api.UpstreamError
	if errors.As(err, &upErr) && !upErr.Transient && upErr.Message != "" {
		return upErr.Message
	}
	return err.Error()
}
