package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/pkg/api"
)

// plainStore hides the Swapper implementation of the wrapped store.
type plainStore struct {
	persistence.Store
}

type transitionRecorder struct {
	api.NoopObserver
	mu       sync.Mutex
	moves    []string
	rejected []string
}

func (r *transitionRecorder) OnTransition(_ context.Context, _ api.UserID, from, to api.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, string(from)+"->"+string(to))
}

func (r *transitionRecorder) OnTransitionRejected(_ context.Context, _ api.UserID, op string, _ []api.State, actual api.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, op+":"+string(actual))
}

func newTestMachine(store persistence.Store, obs api.Observer) *Machine {
	return New(Config{Store: store, Keys: persistence.NewKeys("t"), Observer: obs})
}

func TestGetState_MissingIsIdle(t *testing.T) {
	m := newTestMachine(persistence.NewInMemoryStore(), nil)

	st, err := m.GetState(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if st != api.StateIdle {
		t.Fatalf("expected IDLE, got %s", st)
	}
}

func TestGetState_ExpiredIsIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := persistence.NewInMemoryStoreWithClock(func() time.Time { return now })
	m := newTestMachine(store, nil)
	ctx := context.Background()

	if err := m.SetState(ctx, "1", api.StateReady); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	now = now.Add(DefaultTTL)

	st, err := m.GetState(ctx, "1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if st != api.StateIdle {
		t.Fatalf("expected IDLE after TTL, got %s", st)
	}
}

func TestGetState_UnknownValueIsIdle(t *testing.T) {
	store := persistence.NewInMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "t:fsm:1", "WHATEVER", time.Minute)

	st, err := newTestMachine(store, nil).GetState(ctx, "1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if st != api.StateIdle {
		t.Fatalf("expected IDLE, got %s", st)
	}
}

func TestSetState_WritesWithTTLAndNotifies(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := persistence.NewInMemoryStoreWithClock(func() time.Time { return now })
	rec := &transitionRecorder{}
	m := newTestMachine(store, rec)
	ctx := context.Background()

	if err := m.SetState(ctx, "1", api.StateReady); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	raw, err := store.Get(ctx, "t:fsm:1")
	if err != nil || raw != "READY" {
		t.Fatalf("expected stored READY, got %q (%v)", raw, err)
	}
	if ttl, ok := store.TTL("t:fsm:1"); !ok || ttl != DefaultTTL {
		t.Fatalf("expected TTL %v, got %v", DefaultTTL, ttl)
	}
	if len(rec.moves) != 1 || rec.moves[0] != "IDLE->READY" {
		t.Fatalf("unexpected transitions: %v", rec.moves)
	}

	if err := m.SetState(ctx, "1", api.State("NOPE")); !errors.Is(err, api.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequireState(t *testing.T) {
	rec := &transitionRecorder{}
	m := newTestMachine(persistence.NewInMemoryStore(), rec)
	ctx := context.Background()

	if _, err := m.RequireState(ctx, "1", "start_planning", api.StateIdle, api.StateReady); err != nil {
		t.Fatalf("expected IDLE to be allowed, got %v", err)
	}

	_ = m.SetState(ctx, "1", api.StatePlanning)
	st, err := m.RequireState(ctx, "1", "start_quiz", api.StateReady)
	var conflict *api.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if st != api.StatePlanning || conflict.Actual != api.StatePlanning || conflict.Op != "start_quiz" {
		t.Fatalf("unexpected conflict: %+v (state %s)", conflict, st)
	}
	if len(rec.rejected) != 1 || rec.rejected[0] != "start_quiz:PLANNING" {
		t.Fatalf("unexpected rejections: %v", rec.rejected)
	}
}

func TestGuardedTransition(t *testing.T) {
	stores := map[string]func() persistence.Store{
		"atomic":      func() persistence.Store { return persistence.NewInMemoryStore() },
		"best-effort": func() persistence.Store { return plainStore{persistence.NewInMemoryStore()} },
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			m := newTestMachine(mk(), nil)
			ctx := context.Background()

			got, moved, err := m.GuardedTransition(ctx, "1", []api.State{api.StateIdle, api.StateReady}, api.StatePlanning)
			if err != nil {
				t.Fatalf("GuardedTransition failed: %v", err)
			}
			if got != api.StatePlanning || !moved {
				t.Fatalf("expected move to PLANNING, got %s (moved=%v)", got, moved)
			}

			// Already planning: no write, current state reported.
			got, moved, err = m.GuardedTransition(ctx, "1", []api.State{api.StateIdle, api.StateReady}, api.StatePlanning)
			if err != nil {
				t.Fatalf("GuardedTransition failed: %v", err)
			}
			if got != api.StatePlanning || moved {
				t.Fatalf("expected unchanged PLANNING, got %s (moved=%v)", got, moved)
			}

			got, moved, err = m.GuardedTransition(ctx, "1", []api.State{api.StateReady}, api.StateQuizzing)
			if err != nil {
				t.Fatalf("GuardedTransition failed: %v", err)
			}
			if got != api.StatePlanning || moved {
				t.Fatalf("expected rejection with PLANNING, got %s", got)
			}
		})
	}
}

func TestGuardedTransition_IllegalEdge(t *testing.T) {
	m := newTestMachine(persistence.NewInMemoryStore(), nil)

	_, _, err := m.GuardedTransition(context.Background(), "1", []api.State{api.StateIdle}, api.StateQuizzing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestGuardedTransition_CorruptValueTreatedAsIdle(t *testing.T) {
	store := persistence.NewInMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "t:fsm:1", "garbage", time.Minute)
	m := newTestMachine(store, nil)

	got, moved, err := m.GuardedTransition(ctx, "1", []api.State{api.StateIdle}, api.StatePlanning)
	if err != nil {
		t.Fatalf("GuardedTransition failed: %v", err)
	}
	if got != api.StatePlanning || !moved {
		t.Fatalf("expected move to PLANNING, got %s (moved=%v)", got, moved)
	}
	raw, _ := store.Get(ctx, "t:fsm:1")
	if raw != "PLANNING" {
		t.Fatalf("expected stored PLANNING, got %q", raw)
	}
}

func TestGuardedTransition_ConcurrentOnlyOneWins(t *testing.T) {
	store := persistence.NewInMemoryStore()
	rec := &transitionRecorder{}
	m := newTestMachine(store, rec)
	ctx := context.Background()
	if err := m.SetState(ctx, "42", api.StateReady); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	const n = 2
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		moved int
		lost  []api.State
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, ok, err := m.GuardedTransition(ctx, "42", []api.State{api.StateReady}, api.StateQuizzing)
			if err != nil {
				t.Errorf("GuardedTransition failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				moved++
			} else {
				lost = append(lost, st)
			}
		}()
	}
	wg.Wait()

	if moved != 1 || len(lost) != 1 {
		t.Fatalf("expected one winner and one loser, got moved=%d lost=%v", moved, lost)
	}
	writes := 0
	for _, mv := range rec.moves {
		if mv == "READY->QUIZZING" {
			writes++
		}
	}
	if writes != 1 {
		t.Fatalf("expected exactly one READY->QUIZZING write, got %d (%v)", writes, rec.moves)
	}
}
