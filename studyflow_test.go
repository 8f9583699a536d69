package studyflow

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackends serves a planner, a summary chain and a quiz chain.
func fakeBackends(t *testing.T) Endpoints {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/plan", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"ok":true,"doc_url":"https://docs/plan-1","calendar_info":{"created":true}}]`))
	})
	mux.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"# Graphs\nNodes and edges."}`))
	})
	mux.HandleFunc("/quiz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"questions":[
			{"q":"Q1","options":["a","b","c","d"],"answer_index":1},
			{"q":"Q2","options":["a","b","c","d"],"answer_index":2},
			{"q":"Q3","options":["a","b","c","d"],"answer_index":3}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return Endpoints{PlannerURL: srv.URL + "/plan", SummaryURL: srv.URL + "/summary", QuizURL: srv.URL + "/quiz"}
}

// TestInMemoryOrchestratorWithObserverAndBasicMetrics verifies that:
//   - NewInMemoryOrchestratorWithObserver is usable from the public API
//   - a full plan, quiz and result cycle works without external infra
//   - BasicMetrics sees the expected counts.
func TestInMemoryOrchestratorWithObserverAndBasicMetrics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := &BasicMetrics{}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	orch := NewInMemoryOrchestratorWithObserver(fakeBackends(t), NewCompositeObserver(NewLoggingObserver(logger), metrics))

	info, err := StartPlanning(ctx, orch, StudyRequest{Topic: "graphs", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "https://docs/plan-1", info.DocURL)

	sum, err := orch.FetchSummary(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, "# Graphs\nNodes and edges.", sum.Markdown)

	set, err := StartQuiz(ctx, orch, "u1", "", 3)
	require.NoError(t, err)
	require.Len(t, set.Questions, 3)

	var out AnswerOutcome
	for _, choice := range []int{1, 2, 0} {
		out, err = Answer(ctx, orch, "u1", choice)
		require.NoError(t, err)
	}
	require.True(t, out.Finished)
	require.Equal(t, 2, out.Result.Correct)
	require.NoError(t, orch.RecordQuizResult(ctx, "u1", *out.Result))

	progress, err := orch.FetchProgress(ctx, "u1")
	require.NoError(t, err)
	require.InDelta(t, 66.7, progress.AvgScore, 0.05)

	snap := metrics.Snapshot()
	// IDLE->PLANNING, PLANNING->READY, READY->QUIZZING, QUIZZING->READY.
	require.Equal(t, int64(4), snap.Transitions)
	require.Equal(t, int64(3), snap.UpstreamCalls)
	require.Equal(t, int64(0), snap.Fallbacks)
	require.Equal(t, int64(1), snap.QuizzesCompleted)
}

func TestBuilder_RequiresStoreAndEndpoints(t *testing.T) {
	_, err := New().WithEndpoints(Endpoints{PlannerURL: "http://p", SummaryURL: "http://s", QuizURL: "http://q"}).Build()
	require.Error(t, err)

	_, err = New().WithStore(newMemoryStore()).Build()
	require.ErrorContains(t, err, "planner url")

	_, err = New().WithStore(newMemoryStore()).WithEndpoints(Endpoints{PlannerURL: "http://p"}).Build()
	require.ErrorContains(t, err, "summary and quiz")

	require.Panics(t, func() { New().MustBuild() })
}

func TestStubPlan(t *testing.T) {
	p := StubPlan()
	require.True(t, p.Stub)
	require.NotEmpty(t, p.DocURL)
}
