package api

import "context"

// Orchestrator is the per-user session API exposed to the endpoint layer.
//
// Every method is a self-contained unit of work. Calls for different users
// never share in-process state; calls for the same user are arbitrated by
// guarded state transitions in the session store.
type Orchestrator interface {
	// StartPlanning moves the session to PLANNING, asks the planner for a
	// plan and stores it in the session context. The session ends up READY
	// on success and IDLE on failure.
	StartPlanning(ctx context.Context, req StudyRequest) (PlanInfo, error)

	// FetchSummary returns a summary for topic, or for the topic stored in
	// the session context when topic is empty. Requires READY.
	FetchSummary(ctx context.Context, user UserID, topic string) (Summary, error)

	// StartQuiz moves a READY session to QUIZZING and stores a fresh quiz.
	// count <= 0 selects DefaultQuestionsCount.
	StartQuiz(ctx context.Context, user UserID, topic string, count int) (QuizSet, error)

	// AnswerQuestion grades the current question of the active quiz and
	// advances it. Requires QUIZZING.
	AnswerQuestion(ctx context.Context, user UserID, choice int) (AnswerOutcome, error)

	// RecordQuizResult clears the quiz, returns the session to READY and
	// forwards the result to the progress recorder. Requires QUIZZING or
	// READY. A recorder failure is
	// returned as *PersistError; the state change is not rolled back.
	RecordQuizResult(ctx context.Context, user UserID, result QuizResult) error

	// FetchProgress reports learning progress. It never changes state.
	FetchProgress(ctx context.Context, user UserID) (ProgressInfo, error)

	// GetSession returns a snapshot of the stored session records.
	GetSession(ctx context.Context, user UserID) (SessionView, error)
}
