package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/studyflow/pkg/api"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu     sync.Mutex
	sent   []published
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func decode(t *testing.T, p published) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(p.msg.Body, &ev))
	return ev
}

func TestPublisher_Transition(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "", nil)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	p.OnTransition(context.Background(), "7", api.StateIdle, api.StatePlanning)

	require.Len(t, ch.sent, 1)
	msg := ch.sent[0]
	require.Equal(t, DefaultExchange, msg.exchange)
	require.Equal(t, "session.transition", msg.key)
	require.Equal(t, "application/json", msg.msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.msg.DeliveryMode)
	require.Equal(t, "7", msg.msg.Headers["user_id"])

	ev := decode(t, msg)
	require.Equal(t, TypeSessionTransition, ev.Type)
	require.Equal(t, api.StateIdle, ev.From)
	require.Equal(t, api.StatePlanning, ev.To)
	require.Equal(t, int64(1700000000), ev.Timestamp)
	require.Equal(t, "1.0", ev.Version)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, ev.ID, msg.msg.MessageId)
}

func TestPublisher_QuizCompleted(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "study", nil)

	p.OnQuizCompleted(context.Background(), "7", api.QuizResult{Topic: "graphs", Correct: 3, Total: 4})

	require.Len(t, ch.sent, 1)
	require.Equal(t, "study", ch.sent[0].exchange)
	ev := decode(t, ch.sent[0])
	require.Equal(t, TypeQuizCompleted, ev.Type)
	require.NotNil(t, ev.Result)
	require.Equal(t, "graphs", ev.Result.Topic)
	require.Equal(t, 75.0, *ev.Score)
}

func TestPublisher_IgnoresOtherHooks(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "", nil)

	p.OnFallback(context.Background(), "planner", errors.New("x"))
	p.OnUpstreamCall(context.Background(), "planner", 1, nil, time.Millisecond)
	p.OnTransitionRejected(context.Background(), "7", "start_quiz", []api.State{api.StateReady}, api.StateIdle)

	require.Empty(t, ch.sent)
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewPublisher(ch, "", nil)

	require.NotPanics(t, func() {
		p.OnTransition(context.Background(), "7", api.StateReady, api.StateQuizzing)
	})
	require.ErrorIs(t, p.Publish(context.Background(), Event{Type: TypeQuizCompleted}), amqp.ErrClosed)
}

func TestPublisher_DisabledWithoutURL(t *testing.T) {
	p, err := Dial("", "", nil)
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeQuizCompleted}))
	require.NoError(t, p.Close())
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "", nil)
	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}
