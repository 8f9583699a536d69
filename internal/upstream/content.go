package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

var errNoContent = errors.New("response carries no usable content")

// ContentConfig configures a ContentClient.
type ContentConfig struct {
	SummaryURL string
	QuizURL    string
	Client     *http.Client
	Timeout    time.Duration
	Observer   api.Observer
	Logger     *slog.Logger
}

// ContentClient fetches summaries and quizzes. Calls are made once and
// never fail: any problem yields a placeholder result with Fallback set.
type ContentClient struct {
	summary  poster
	quiz     poster
	observer api.Observer
	logger   *slog.Logger
}

// NewContentClient creates a ContentClient from cfg.
func NewContentClient(cfg ContentConfig) *ContentClient {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContentClient{
		summary:  newPoster("summary", cfg.SummaryURL, cfg.Client, cfg.Timeout),
		quiz:     newPoster("quiz", cfg.QuizURL, cfg.Client, cfg.Timeout),
		observer: obs,
		logger:   logger,
	}
}

// Summary returns a markdown summary for req.
func (c *ContentClient) Summary(ctx context.Context, req api.SummaryRequest) api.Summary {
	start := time.Now()
	payload, err := c.summary.post(ctx, req)
	var text string
	if err == nil {
		var ok bool
		if text, ok = FindText(payload); !ok {
			err = errNoContent
		}
	}
	c.observer.OnUpstreamCall(ctx, api.CallSummary, 1, err, time.Since(start))

	if err != nil {
		c.fallback(ctx, api.CallSummary, req.Topic, err)
		return api.Summary{Markdown: PlaceholderSummary(req.Topic), Fallback: true}
	}
	return api.Summary{Markdown: text}
}

// Quiz returns the questions of a new quiz for req. The placeholder set
// holds req.QuestionsCount questions.
func (c *ContentClient) Quiz(ctx context.Context, req api.QuizRequest) api.QuizSet {
	start := time.Now()
	payload, err := c.quiz.post(ctx, req)
	var questions []api.Question
	if err == nil {
		if questions = QuestionsFromPayload(payload); len(questions) == 0 {
			err = errNoContent
		}
	}
	c.observer.OnUpstreamCall(ctx, api.CallQuiz, 1, err, time.Since(start))

	if err != nil {
		c.fallback(ctx, api.CallQuiz, req.Topic, err)
		return api.QuizSet{Questions: FakeQuestions(req.QuestionsCount, req.Topic), Fallback: true}
	}
	return api.QuizSet{Questions: questions}
}

func (c *ContentClient) fallback(ctx context.Context, call, topic string, err error) {
	c.logger.WarnContext(ctx, "content call failed, using placeholder",
		slog.String("call", call),
		slog.String("topic", topic),
		slog.Any("error", err),
	)
	c.observer.OnFallback(ctx, call, err)
}
