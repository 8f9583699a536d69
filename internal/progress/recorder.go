// Package progress records finished quizzes and reports per-user learning
// statistics. Backends: in-memory, SQLite, PostgreSQL and MongoDB.
package progress

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/studyflow/pkg/api"
)

// MaxWeakTopics bounds the weak topics reported by Stats.
const MaxWeakTopics = 5

// weakTopicWindow is how many recent results are scanned for weak topics.
const weakTopicWindow = 20

// Recorder stores quiz results.
type Recorder interface {
	// Record appends result to the user's history.
	Record(ctx context.Context, user api.UserID, result api.QuizResult) error

	// Stats summarizes the user's history. A user without results gets
	// zero stats and no error.
	Stats(ctx context.Context, user api.UserID) (api.ProgressStats, error)
}

// Entry is one stored quiz result.
type Entry struct {
	ID         string
	UserID     api.UserID
	Topic      string
	Correct    int
	Total      int
	Score      float64
	WeakTopics []string
	RecordedAt time.Time
}

// NewEntry stamps result with a fresh id, its score and now.
func NewEntry(user api.UserID, result api.QuizResult, now time.Time) Entry {
	return Entry{
		ID:         uuid.NewString(),
		UserID:     user,
		Topic:      result.Topic,
		Correct:    result.Correct,
		Total:      result.Total,
		Score:      result.Score(),
		WeakTopics: result.WeakTopics,
		RecordedAt: now.UTC(),
	}
}

// mergeWeakTopics collects distinct weak topics from lists ordered newest
// first, keeping at most MaxWeakTopics.
func mergeWeakTopics(lists ...[]string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, t := range list {
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
			if len(out) == MaxWeakTopics {
				return out
			}
		}
	}
	return out
}

// roundScore keeps one decimal place.
func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}

// Completion estimates how much of a plan of durationDays has been worked
// through, counting one quiz per planned day. The result is in [0, 100].
func Completion(attempts, durationDays int) float64 {
	if durationDays <= 0 {
		durationDays = api.DefaultDurationDays
	}
	if attempts <= 0 {
		return 0
	}
	return roundScore(math.Min(100, float64(attempts)*100/float64(durationDays)))
}
