package studyflow_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/petrijr/studyflow"
)

// Example_inMemory demonstrates planning and starting a quiz against an
// in-memory session store. The content back-end is unreachable, so the
// quiz falls back to placeholder questions.
func Example_inMemory() {
	ctx := context.Background()

	planner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"doc_url":"https://docs.example.com/plan"}`))
	}))
	defer planner.Close()

	orch := studyflow.NewInMemoryOrchestrator(studyflow.Endpoints{
		PlannerURL: planner.URL,
		SummaryURL: "http://127.0.0.1:1/summary",
		QuizURL:    "http://127.0.0.1:1/quiz",
	})

	info, err := studyflow.StartPlanning(ctx, orch, studyflow.StudyRequest{Topic: "graphs", UserID: "42"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("plan:", info.DocURL)

	quiz, err := studyflow.StartQuiz(ctx, orch, "42", "", 3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("fallback quiz:", quiz.Fallback, len(quiz.Questions))
	fmt.Println("first:", quiz.Questions[0].Prompt)

	view, _ := orch.GetSession(ctx, "42")
	fmt.Println("state:", view.State)

	// Output:
	// plan: https://docs.example.com/plan
	// fallback quiz: true 3
	// first: 1. Topic: graphs. Choose the correct option.
	// state: QUIZZING
}

// Example_retry shows the planner retry policy builder and the longest
// time it can spend waiting between attempts.
func Example_retry() {
	r := studyflow.Retry(3)
	p := r.Policy()
	fmt.Println(p.MaxAttempts, p.Delay(1), p.Delay(2), r.Budget())

	// Output:
	// 3 500ms 1s 1.5s
}
