package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/petrijr/studyflow/internal/fsm"
	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/internal/progress"
	"github.com/petrijr/studyflow/internal/session"
	"github.com/petrijr/studyflow/pkg/api"
)

// Operation names used in state conflict errors and observer callbacks.
const (
	OpStartPlanning = "start_planning"
	OpFetchSummary  = "fetch_summary"
	OpStartQuiz     = "start_quiz"
	OpAnswer        = "answer_question"
	OpRecordResult  = "record_quiz_result"
)

// weakScoreThreshold is the score (percent) below which a quiz topic is
// reported as weak.
const weakScoreThreshold = 60.0

// Planner produces study plans.
type Planner interface {
	Plan(ctx context.Context, req api.StudyRequest) (api.PlanInfo, error)
}

// Content produces summaries and quizzes. Implementations degrade to
// placeholder results instead of failing.
type Content interface {
	Summary(ctx context.Context, req api.SummaryRequest) api.Summary
	Quiz(ctx context.Context, req api.QuizRequest) api.QuizSet
}

// Config describes how to construct an orchestrator.
type Config struct {
	Store     persistence.Store
	KeyPrefix string

	StateTTL   time.Duration
	ContextTTL time.Duration
	QuizTTL    time.Duration

	Planner  Planner
	Content  Content
	Recorder progress.Recorder
	Observer api.Observer
	Logger   *slog.Logger
}

// orchestrator sequences the state machine, the session records, the
// upstream back-ends and the progress recorder for each operation.
type orchestrator struct {
	machine  *fsm.Machine
	contexts *session.ContextStore
	quizzes  *session.QuizStore
	planner  Planner
	content  Content
	recorder progress.Recorder
	observer api.Observer
	logger   *slog.Logger
}

var _ api.Orchestrator = (*orchestrator)(nil)

// NewOrchestrator creates an api.Orchestrator from cfg. A nil Recorder
// selects an in-memory one.
func NewOrchestrator(cfg Config) api.Orchestrator {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = progress.NewMemoryRecorder()
	}
	keys := persistence.NewKeys(cfg.KeyPrefix)

	return &orchestrator{
		machine: fsm.New(fsm.Config{
			Store:    cfg.Store,
			Keys:     keys,
			TTL:      cfg.StateTTL,
			Observer: obs,
		}),
		contexts: session.NewContextStore(cfg.Store, keys, cfg.ContextTTL),
		quizzes:  session.NewQuizStore(cfg.Store, keys, cfg.QuizTTL, logger),
		planner:  cfg.Planner,
		content:  cfg.Content,
		recorder: recorder,
		observer: obs,
		logger:   logger,
	}
}

func (o *orchestrator) StartPlanning(ctx context.Context, req api.StudyRequest) (api.PlanInfo, error) {
	req, err := req.Normalize()
	if err != nil {
		return api.PlanInfo{}, err
	}
	user := req.UserID
	if err := requireUser(user); err != nil {
		return api.PlanInfo{}, err
	}

	if err := o.acquire(ctx, user, OpStartPlanning, []api.State{api.StateIdle, api.StateReady}, api.StatePlanning); err != nil {
		return api.PlanInfo{}, err
	}

	info, err := o.planner.Plan(ctx, req)
	if err != nil {
		o.revert(ctx, user, api.StatePlanning, api.StateIdle)
		return api.PlanInfo{}, err
	}

	// The plan is in hand; finish the bookkeeping even if the caller has
	// gone away so the session does not stay in PLANNING.
	wctx := context.WithoutCancel(ctx)
	fields := map[string]any{
		api.CtxTopic:        req.Topic,
		api.CtxLevel:        string(req.Depth),
		api.CtxDocURL:       info.DocURL,
		api.CtxCalendarInfo: info.CalendarInfo,
		api.CtxDurationDays: req.DurationDays,
	}
	if err := o.contexts.Set(wctx, user, fields); err != nil {
		o.revert(ctx, user, api.StatePlanning, api.StateIdle)
		return api.PlanInfo{}, err
	}
	if err := o.machine.Transition(wctx, user, api.StatePlanning, api.StateReady); err != nil {
		return api.PlanInfo{}, err
	}
	return info, nil
}

func (o *orchestrator) FetchSummary(ctx context.Context, user api.UserID, topic string) (api.Summary, error) {
	if err := requireUser(user); err != nil {
		return api.Summary{}, err
	}
	if _, err := o.machine.RequireState(ctx, user, OpFetchSummary, api.StateReady); err != nil {
		return api.Summary{}, err
	}

	sctx, err := o.contexts.Get(ctx, user)
	if err != nil {
		return api.Summary{}, err
	}
	topic, err = resolveTopic(topic, sctx)
	if err != nil {
		return api.Summary{}, err
	}

	return o.content.Summary(ctx, api.SummaryRequest{
		Topic: topic,
		Level: storedLevel(sctx),
	}), nil
}

func (o *orchestrator) StartQuiz(ctx context.Context, user api.UserID, topic string, count int) (api.QuizSet, error) {
	if err := requireUser(user); err != nil {
		return api.QuizSet{}, err
	}
	if count == 0 {
		count = api.DefaultQuestionsCount
	}
	if count < api.MinQuestionsCount || count > api.MaxQuestionsCount {
		return api.QuizSet{}, &api.ValidationError{Field: "questions_count", Reason: "must be within [3, 10]"}
	}

	if err := o.acquire(ctx, user, OpStartQuiz, []api.State{api.StateReady}, api.StateQuizzing); err != nil {
		return api.QuizSet{}, err
	}

	sctx, err := o.contexts.Get(ctx, user)
	if err != nil {
		o.revert(ctx, user, api.StateQuizzing, api.StateReady)
		return api.QuizSet{}, err
	}
	topic, err = resolveTopic(topic, sctx)
	if err != nil {
		o.revert(ctx, user, api.StateQuizzing, api.StateReady)
		return api.QuizSet{}, err
	}
	level := storedLevel(sctx)

	set := o.content.Quiz(ctx, api.QuizRequest{Topic: topic, Level: level, QuestionsCount: count})

	err = o.quizzes.Set(context.WithoutCancel(ctx), user, api.QuizSession{
		Questions:    set.Questions,
		CurrentIndex: 0,
		Topic:        topic,
		Level:        level,
	})
	if err != nil {
		o.revert(ctx, user, api.StateQuizzing, api.StateReady)
		return api.QuizSet{}, err
	}
	return set, nil
}

func (o *orchestrator) AnswerQuestion(ctx context.Context, user api.UserID, choice int) (api.AnswerOutcome, error) {
	if err := requireUser(user); err != nil {
		return api.AnswerOutcome{}, err
	}
	if _, err := o.machine.RequireState(ctx, user, OpAnswer, api.StateQuizzing); err != nil {
		return api.AnswerOutcome{}, err
	}

	quiz, err := o.quizzes.Get(ctx, user)
	if err != nil {
		return api.AnswerOutcome{}, err
	}
	if quiz == nil {
		return api.AnswerOutcome{}, o.abandonQuiz(ctx, user)
	}
	if quiz.Done() {
		result := quizResult(quiz)
		return api.AnswerOutcome{Index: quiz.CurrentIndex, Finished: true, Result: &result}, nil
	}

	question, _ := quiz.Current()
	if choice < 0 || choice >= len(question.Options) {
		return api.AnswerOutcome{}, &api.ValidationError{Field: "choice", Reason: "must be an option index"}
	}

	index := quiz.CurrentIndex
	correct := choice == question.CorrectIndex
	next := index + 1
	score := quiz.Correct
	if correct {
		score++
	}

	updated, err := o.quizzes.Update(ctx, user, api.QuizPatch{CurrentIndex: &next, Correct: &score})
	if err != nil {
		return api.AnswerOutcome{}, err
	}
	if updated == nil {
		return api.AnswerOutcome{}, o.abandonQuiz(ctx, user)
	}

	out := api.AnswerOutcome{Index: index, Correct: correct, CorrectIndex: question.CorrectIndex}
	if q, ok := updated.Current(); ok {
		out.Next = &q
		return out, nil
	}
	result := quizResult(updated)
	out.Finished = true
	out.Result = &result
	return out, nil
}

func (o *orchestrator) RecordQuizResult(ctx context.Context, user api.UserID, result api.QuizResult) error {
	if err := requireUser(user); err != nil {
		return err
	}
	if err := result.Validate(); err != nil {
		return err
	}

	if err := o.quizzes.Clear(ctx, user); err != nil {
		return err
	}
	// A result outside a quiz must not release a PLANNING session.
	if err := o.acquire(ctx, user, OpRecordResult, []api.State{api.StateQuizzing, api.StateReady}, api.StateReady); err != nil {
		return err
	}

	if err := o.recorder.Record(ctx, user, result); err != nil {
		o.logger.ErrorContext(ctx, "failed to record quiz result",
			slog.String("user", string(user)),
			slog.String("topic", result.Topic),
			slog.Any("error", err),
		)
		return &api.PersistError{Err: err}
	}
	o.observer.OnQuizCompleted(ctx, user, result)
	return nil
}

func (o *orchestrator) FetchProgress(ctx context.Context, user api.UserID) (api.ProgressInfo, error) {
	if err := requireUser(user); err != nil {
		return api.ProgressInfo{}, err
	}
	sctx, err := o.contexts.Get(ctx, user)
	if err != nil {
		return api.ProgressInfo{}, err
	}
	stats, err := o.recorder.Stats(ctx, user)
	if err != nil {
		return api.ProgressInfo{}, &api.PersistError{Err: err}
	}

	weak := stats.WeakTopics
	if weak == nil {
		weak = []string{}
	}
	return api.ProgressInfo{
		CompletionPercent: progress.Completion(stats.Attempts, sctx.Int(api.CtxDurationDays, api.DefaultDurationDays)),
		AvgScore:          stats.AvgScore,
		WeakTopics:        weak,
		DocURL:            sctx.String(api.CtxDocURL),
	}, nil
}

func (o *orchestrator) GetSession(ctx context.Context, user api.UserID) (api.SessionView, error) {
	if err := requireUser(user); err != nil {
		return api.SessionView{}, err
	}
	st, err := o.machine.GetState(ctx, user)
	if err != nil {
		return api.SessionView{}, err
	}
	sctx, err := o.contexts.Get(ctx, user)
	if err != nil {
		return api.SessionView{}, err
	}
	quiz, err := o.quizzes.Get(ctx, user)
	if err != nil {
		return api.SessionView{}, err
	}
	return api.SessionView{UserID: user, State: st, Context: sctx, Quiz: quiz}, nil
}

// acquire performs the guarded transition that opens an operation and turns
// a lost or refused transition into a *api.StateConflictError.
func (o *orchestrator) acquire(ctx context.Context, user api.UserID, op string, from []api.State, to api.State) error {
	actual, moved, err := o.machine.GuardedTransition(ctx, user, from, to)
	if err != nil {
		return err
	}
	if !moved {
		o.observer.OnTransitionRejected(ctx, user, op, from, actual)
		return &api.StateConflictError{Op: op, Allowed: from, Actual: actual}
	}
	return nil
}

// revert undoes the transition taken by acquire after a failure. The
// original error is what the caller reports, so a failed revert is only
// logged.
func (o *orchestrator) revert(ctx context.Context, user api.UserID, from, to api.State) {
	if err := o.machine.Transition(context.WithoutCancel(ctx), user, from, to); err != nil {
		o.logger.ErrorContext(ctx, "failed to revert session state",
			slog.String("user", string(user)),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err),
		)
	}
}

// abandonQuiz handles a QUIZZING session whose quiz record has expired: the
// session goes back to READY so the user can start over.
func (o *orchestrator) abandonQuiz(ctx context.Context, user api.UserID) error {
	o.logger.WarnContext(ctx, "quiz session missing, returning to READY", slog.String("user", string(user)))
	if err := o.machine.Transition(ctx, user, api.StateQuizzing, api.StateReady); err != nil {
		return err
	}
	return &api.ValidationError{Field: "quiz", Reason: "no active quiz"}
}

func requireUser(user api.UserID) error {
	if strings.TrimSpace(string(user)) == "" {
		return &api.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	return nil
}

// resolveTopic prefers an explicit topic and falls back to the one stored
// by planning.
func resolveTopic(explicit string, sctx api.SessionContext) (string, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return t, nil
	}
	if t := strings.TrimSpace(sctx.String(api.CtxTopic)); t != "" {
		return t, nil
	}
	return "", &api.ValidationError{Field: "topic", Reason: "not given and not stored in the session"}
}

func storedLevel(sctx api.SessionContext) api.Level {
	lvl, err := api.ParseLevel(sctx.String(api.CtxLevel))
	if err != nil {
		return api.LevelBasic
	}
	return lvl
}

// quizResult grades a finished quiz.
func quizResult(q *api.QuizSession) api.QuizResult {
	res := api.QuizResult{
		Topic:      q.Topic,
		Correct:    q.Correct,
		Total:      len(q.Questions),
		WeakTopics: []string{},
	}
	if res.Total > 0 && res.Score() < weakScoreThreshold {
		res.WeakTopics = []string{q.Topic}
	}
	return res
}
