package api

import (
	"fmt"
	"strconv"
	"strings"
)

// OptionsPerQuestion is the fixed number of answer options every quiz
// question carries after normalization.
const OptionsPerQuestion = 4

// UserID identifies a session. Chat transports with numeric ids format
// them in decimal (see UserIDFromInt).
type UserID string

// UserIDFromInt formats a numeric chat id.
func UserIDFromInt(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}

func (u UserID) String() string { return string(u) }

// Level is the requested depth of study material.
type Level string

const (
	LevelBasic        Level = "basic"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel accepts the known levels case-insensitively. "beginner" is
// accepted as an alias of basic. An empty string yields LevelBasic.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic", "beginner":
		return LevelBasic, nil
	case "intermediate":
		return LevelIntermediate, nil
	case "advanced":
		return LevelAdvanced, nil
	default:
		return "", &ValidationError{Field: "depth", Reason: fmt.Sprintf("unknown level %q", s)}
	}
}

// StudyRequest asks the planner for a study plan.
type StudyRequest struct {
	Topic            string `json:"topic"`
	Depth            Level  `json:"depth"`
	DurationDays     int    `json:"duration_days"`
	DailyTimeMinutes int    `json:"daily_time_minutes"`
	UserID           UserID `json:"user_id"`
}

// Study request defaults and bounds.
const (
	DefaultDurationDays     = 7
	DefaultDailyTimeMinutes = 20
	minTopicLength          = 2
)

// Normalize applies defaults and validates the request.
func (r StudyRequest) Normalize() (StudyRequest, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if len([]rune(r.Topic)) < minTopicLength {
		return r, &ValidationError{Field: "topic", Reason: "must be at least 2 characters"}
	}
	lvl, err := ParseLevel(string(r.Depth))
	if err != nil {
		return r, err
	}
	r.Depth = lvl

	if r.DurationDays == 0 {
		r.DurationDays = DefaultDurationDays
	}
	if r.DurationDays < 1 || r.DurationDays > 60 {
		return r, &ValidationError{Field: "duration_days", Reason: "must be within [1, 60]"}
	}
	if r.DailyTimeMinutes == 0 {
		r.DailyTimeMinutes = DefaultDailyTimeMinutes
	}
	if r.DailyTimeMinutes < 5 || r.DailyTimeMinutes > 180 {
		return r, &ValidationError{Field: "daily_time_minutes", Reason: "must be within [5, 180]"}
	}
	return r, nil
}

// PlanInfo is the planner's answer: a document reference and optional
// calendar metadata. Stub is set when the plan is the local fallback.
type PlanInfo struct {
	DocURL       string         `json:"doc_url"`
	CalendarInfo map[string]any `json:"calendar_info,omitempty"`
	Stub         bool           `json:"stub,omitempty"`
}

// SummaryRequest asks the content back-end for a study summary.
type SummaryRequest struct {
	Topic        string   `json:"topic"`
	Level        Level    `json:"level"`
	MaterialsIDs []string `json:"materials_ids,omitempty"`
}

// Summary is a markdown study summary.
type Summary struct {
	Markdown string `json:"markdown"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Quiz size bounds.
const (
	DefaultQuestionsCount = 6
	MinQuestionsCount     = 3
	MaxQuestionsCount     = 10
)

// QuizRequest asks the content back-end for a set of questions.
type QuizRequest struct {
	Topic          string `json:"topic"`
	Level          Level  `json:"level"`
	QuestionsCount int    `json:"questions_count"`
}

// Question is a single multiple-choice question. After normalization
// Options has exactly OptionsPerQuestion entries and CorrectIndex is a
// valid index into it.
type Question struct {
	Prompt       string   `json:"q"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"answer_index"`
}

// QuizSet is the list of questions returned when a quiz starts.
type QuizSet struct {
	Questions []Question `json:"questions"`
	Fallback  bool       `json:"fallback,omitempty"`
}

// QuizSession is the active quiz of a user, stored as one blob.
type QuizSession struct {
	Questions    []Question `json:"questions"`
	CurrentIndex int        `json:"current_index"`
	Topic        string     `json:"topic"`
	Level        Level      `json:"level"`
	Correct      int        `json:"correct"`
}

// Current returns the question at CurrentIndex.
func (q *QuizSession) Current() (Question, bool) {
	if q == nil || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[q.CurrentIndex], true
}

// Done reports whether every question has been answered.
func (q *QuizSession) Done() bool {
	return q == nil || q.CurrentIndex >= len(q.Questions)
}

// QuizPatch is a shallow update of a QuizSession; nil fields are left as is.
type QuizPatch struct {
	Questions    []Question
	CurrentIndex *int
	Topic        *string
	Level        *Level
	Correct      *int
}

// Apply merges the patch into q.
func (p QuizPatch) Apply(q *QuizSession) {
	if p.Questions != nil {
		q.Questions = p.Questions
	}
	if p.CurrentIndex != nil {
		q.CurrentIndex = *p.CurrentIndex
	}
	if p.Topic != nil {
		q.Topic = *p.Topic
	}
	if p.Level != nil {
		q.Level = *p.Level
	}
	if p.Correct != nil {
		q.Correct = *p.Correct
	}
}

// QuizResult is the outcome of a finished quiz. It is forwarded to the
// progress recorder and never stored in the session.
type QuizResult struct {
	Topic      string   `json:"topic"`
	Correct    int      `json:"correct"`
	Total      int      `json:"total"`
	WeakTopics []string `json:"weak_topics,omitempty"`
}

// Validate checks the result's bounds.
func (r QuizResult) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return &ValidationError{Field: "topic", Reason: "must not be empty"}
	}
	if r.Total < 1 {
		return &ValidationError{Field: "total", Reason: "must be >= 1"}
	}
	if r.Correct < 0 || r.Correct > r.Total {
		return &ValidationError{Field: "correct", Reason: "must be within [0, total]"}
	}
	return nil
}

// Score is the percentage of correct answers.
func (r QuizResult) Score() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Correct) * 100 / float64(r.Total)
}

// AnswerOutcome reports the grading of one quiz answer.
type AnswerOutcome struct {
	Index        int         `json:"index"`
	Correct      bool        `json:"correct"`
	CorrectIndex int         `json:"answer_index"`
	Next         *Question   `json:"next,omitempty"`
	Finished     bool        `json:"finished"`
	Result       *QuizResult `json:"result,omitempty"`
}

// ProgressStats is what a progress recorder knows about a user.
type ProgressStats struct {
	Attempts   int
	AvgScore   float64
	WeakTopics []string
}

// ProgressInfo is the user-facing progress report.
type ProgressInfo struct {
	CompletionPercent float64  `json:"completion_percent"`
	AvgScore          float64  `json:"avg_score"`
	WeakTopics        []string `json:"weak_topics"`
	DocURL            string   `json:"doc_url,omitempty"`
}

// SessionContext holds the supplementary data of a session (topic, level,
// document reference, calendar metadata). Values are decoded JSON, or the
// raw stored string when decoding failed.
type SessionContext map[string]any

// Context keys written by the orchestrator.
const (
	CtxTopic        = "topic"
	CtxLevel        = "level"
	CtxDocURL       = "doc_url"
	CtxCalendarInfo = "calendar_info"
	CtxDurationDays = "duration_days"
)

// String returns the value under key as a string. Numbers and booleans are
// formatted; missing, null and structured values yield "".
func (c SessionContext) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int returns the value under key as an int, or def when absent or not numeric.
func (c SessionContext) Int(key string, def int) int {
	switch v := c[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// SessionView is a read-only snapshot of everything stored for a user.
type SessionView struct {
	UserID  UserID         `json:"user_id"`
	State   State          `json:"state"`
	Context SessionContext `json:"context"`
	Quiz    *QuizSession   `json:"quiz,omitempty"`
}
