package events

import "github.com/petrijr/studyflow/pkg/api"

// Type is an event type; it doubles as the routing key.
type Type string

const (
	TypeSessionTransition Type = "session.transition"
	TypeQuizCompleted     Type = "quiz.completed"
)

const eventVersion = "1.0"

// Event is the JSON body of a published message.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Version   string          `json:"version"`
	Timestamp int64           `json:"timestamp"`
	UserID    api.UserID      `json:"user_id"`
	From      api.State       `json:"from,omitempty"`
	To        api.State       `json:"to,omitempty"`
	Result    *api.QuizResult `json:"result,omitempty"`
	Score     *float64        `json:"score,omitempty"`
}
