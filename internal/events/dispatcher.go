package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petrijr/studyflow/pkg/api"
)

// Sender publishes a single event. *Publisher implements it.
type Sender interface {
	Publish(ctx context.Context, ev Event) error
}

// Dispatcher is an api.Observer that queues events in memory and publishes
// them from background goroutines, so a slow broker never delays a session
// operation. When the buffer is full new events are dropped and counted.
//
// Typical usage:
//
//	d := events.NewDispatcher(publisher, 256, logger)
//	_ = d.Start(ctx, 1)
//	defer d.Stop()
type Dispatcher struct {
	api.NoopObserver

	sender  Sender
	queue   chan Event
	logger  *slog.Logger
	dropped atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ api.Observer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with the given buffer capacity.
func NewDispatcher(sender Sender, capacity int, logger *slog.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan Event, capacity),
		logger: logger,
	}
}

// Start launches concurrency publishing goroutines. Calling Start twice
// without Stop is an error.
func (d *Dispatcher) Start(ctx context.Context, concurrency int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return errors.New("events: dispatcher already started")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	d.wg.Add(concurrency)
	for range concurrency {
		go func() {
			defer d.wg.Done()
			for {
				select {
				case ev := <-d.queue:
					d.send(ctx, ev)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return nil
}

// Stop halts the goroutines, then publishes whatever is still buffered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	for {
		select {
		case ev := <-d.queue:
			d.send(context.Background(), ev)
		default:
			return
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Len returns the number of buffered events.
func (d *Dispatcher) Len() int { return len(d.queue) }

func (d *Dispatcher) OnTransition(ctx context.Context, user api.UserID, from, to api.State) {
	d.enqueue(ctx, Event{Type: TypeSessionTransition, UserID: user, From: from, To: to})
}

func (d *Dispatcher) OnQuizCompleted(ctx context.Context, user api.UserID, result api.QuizResult) {
	score := result.Score()
	d.enqueue(ctx, Event{Type: TypeQuizCompleted, UserID: user, Result: &result, Score: &score})
}

func (d *Dispatcher) enqueue(ctx context.Context, ev Event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "event buffer full, dropping event",
			slog.String("type", string(ev.Type)),
			slog.String("user", string(ev.UserID)),
		)
	}
}

func (d *Dispatcher) send(ctx context.Context, ev Event) {
	if err := d.sender.Publish(context.WithoutCancel(ctx), ev); err != nil {
		d.logger.Warn("event publish failed",
			slog.String("type", string(ev.Type)),
			slog.String("user", string(ev.UserID)),
			slog.Any("error", err),
		)
	}
}
