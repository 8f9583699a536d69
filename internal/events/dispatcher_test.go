package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/studyflow/pkg/api"
)

type recordingSender struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *recordingSender) Publish(ctx context.Context, ev Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcher_PublishesInBackground(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 16, nil)
	require.NoError(t, d.Start(context.Background(), 2))
	defer d.Stop()

	ctx := context.Background()
	d.OnTransition(ctx, "1", api.StateIdle, api.StatePlanning)
	d.OnTransition(ctx, "1", api.StatePlanning, api.StateReady)
	d.OnQuizCompleted(ctx, "1", api.QuizResult{Topic: "graphs", Correct: 1, Total: 2})

	require.Eventually(t, func() bool { return sender.count() == 3 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_DoubleStart(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, nil)
	require.NoError(t, d.Start(context.Background(), 1))
	defer d.Stop()
	require.Error(t, d.Start(context.Background(), 1))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 2, nil)

	for range 5 {
		d.OnTransition(context.Background(), "1", api.StateReady, api.StateQuizzing)
	}
	require.Equal(t, 2, d.Len())
	require.Equal(t, int64(3), d.Dropped())
}

func TestDispatcher_StopFlushesBuffer(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 8, nil)
	d.OnTransition(context.Background(), "1", api.StateReady, api.StateQuizzing)
	d.OnTransition(context.Background(), "1", api.StateQuizzing, api.StateReady)

	require.NoError(t, d.Start(context.Background(), 1))
	d.Stop()

	require.Equal(t, 2, sender.count())
	require.Equal(t, 0, d.Len())
}
