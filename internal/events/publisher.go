// Package events publishes session lifecycle events to a RabbitMQ topic
// exchange. The Publisher is an api.Observer, so it is attached to the
// orchestrator next to logging and metrics observers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/petrijr/studyflow/pkg/api"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "studyflow.events"

// publishTimeout bounds a single publish; observer callbacks must not stall
// the operation that triggered them.
const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends session.transition and quiz.completed events. Publish
// failures are logged and otherwise ignored.
type Publisher struct {
	api.NoopObserver

	conn     *amqp.Connection
	channel  Channel
	exchange string
	enabled  bool
	logger   *slog.Logger
	now      func() time.Time
}

var _ api.Observer = (*Publisher)(nil)

// Dial connects to url, declares a durable topic exchange and returns a
// publisher bound to it. An empty url returns a disabled publisher.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if url == "" {
		logger.Warn("AMQP url is empty, event publishing is disabled")
		return &Publisher{exchange: exchange, logger: logger, now: time.Now}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger.Info("event publisher ready", slog.String("exchange", exchange))
	p := NewPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an already open channel. The exchange must exist.
func NewPublisher(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		enabled:  ch != nil,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool { return p.enabled }

func (p *Publisher) OnTransition(ctx context.Context, user api.UserID, from, to api.State) {
	p.publish(ctx, Event{
		Type:   TypeSessionTransition,
		UserID: user,
		From:   from,
		To:     to,
	})
}

func (p *Publisher) OnQuizCompleted(ctx context.Context, user api.UserID, result api.QuizResult) {
	score := result.Score()
	p.publish(ctx, Event{
		Type:   TypeQuizCompleted,
		UserID: user,
		Result: &result,
		Score:  &score,
	})
}

// Publish sends ev, filling in its id, version and timestamp.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if !p.enabled {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Version == "" {
		ev.Version = eventVersion
	}
	ts := p.now().UTC()
	if ev.Timestamp == 0 {
		ev.Timestamp = ts.Unix()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,      // exchange
		string(ev.Type), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ts,
			Body:         body,
			Headers: amqp.Table{
				"event_type": string(ev.Type),
				"user_id":    string(ev.UserID),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	if err := p.Publish(ctx, ev); err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", string(ev.Type)),
			slog.String("user", string(ev.UserID)),
			slog.Any("error", err),
		)
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing RabbitMQ channel", slog.Any("error", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close RabbitMQ connection: %w", err)
		}
	}
	return nil
}
