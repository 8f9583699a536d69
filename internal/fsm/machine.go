// Package fsm owns the per-user session state. It is the only component
// that writes the state record.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/pkg/api"
)

// DefaultTTL is how long a state record lives without being written.
const DefaultTTL = 48 * time.Hour

// ErrIllegalTransition is returned when a caller asks for an edge that is
// not in the transition table.
var ErrIllegalTransition = errors.New("illegal state transition")

// Config describes how to construct a Machine.
type Config struct {
	Store    persistence.Store
	Keys     persistence.Keys
	TTL      time.Duration
	Observer api.Observer
}

// Machine reads and writes session states. Writes always renew the TTL.
//
// When the store implements persistence.Swapper, GuardedTransition is a
// single atomic compare-and-swap. Otherwise it degrades to a read followed
// by a write, which is not linearizable against a concurrent transition
// for the same user; callers must inspect the returned state either way.
type Machine struct {
	store    persistence.Store
	swapper  persistence.Swapper
	keys     persistence.Keys
	ttl      time.Duration
	observer api.Observer
}

// New creates a Machine from cfg.
func New(cfg Config) *Machine {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	m := &Machine{
		store:    cfg.Store,
		keys:     cfg.Keys,
		ttl:      ttl,
		observer: obs,
	}
	if sw, ok := cfg.Store.(persistence.Swapper); ok {
		m.swapper = sw
	}
	return m
}

// Atomic reports whether guarded transitions use compare-and-swap.
func (m *Machine) Atomic() bool { return m.swapper != nil }

// GetState returns the stored state, or IDLE when the record is absent,
// expired or unreadable. Only store failures produce an error.
func (m *Machine) GetState(ctx context.Context, user api.UserID) (api.State, error) {
	raw, err := m.store.Get(ctx, m.keys.State(user))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return api.StateIdle, nil
		}
		return api.StateIdle, err
	}
	st, _ := api.ParseState(raw)
	return st, nil
}

// SetState unconditionally overwrites the state.
func (m *Machine) SetState(ctx context.Context, user api.UserID, to api.State) error {
	if !to.Valid() {
		return &api.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", to)}
	}
	from, err := m.GetState(ctx, user)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.keys.State(user), string(to), m.ttl); err != nil {
		return err
	}
	m.observer.OnTransition(ctx, user, from, to)
	return nil
}

// Transition writes to after checking that from -> to is a legal edge. The
// caller is expected to already own from (typically through a preceding
// GuardedTransition); the current value is not re-read.
func (m *Machine) Transition(ctx context.Context, user api.UserID, from, to api.State) error {
	if !api.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if err := m.store.Set(ctx, m.keys.State(user), string(to), m.ttl); err != nil {
		return err
	}
	m.observer.OnTransition(ctx, user, from, to)
	return nil
}

// RequireState returns the current state, or a *api.StateConflictError when
// it is not one of allowed. op names the operation in the error.
func (m *Machine) RequireState(ctx context.Context, user api.UserID, op string, allowed ...api.State) (api.State, error) {
	st, err := m.GetState(ctx, user)
	if err != nil {
		return st, err
	}
	if !slices.Contains(allowed, st) {
		m.observer.OnTransitionRejected(ctx, user, op, allowed, st)
		return st, &api.StateConflictError{Op: op, Allowed: allowed, Actual: st}
	}
	return st, nil
}

// GuardedTransition moves the session to `to` if its current state is one
// of from. It returns (to, true) when it wrote, and the current state with
// false otherwise. A caller that loses a race may observe `to` written by
// the winner, so success must be read from the boolean.
func (m *Machine) GuardedTransition(ctx context.Context, user api.UserID, from []api.State, to api.State) (api.State, bool, error) {
	for _, f := range from {
		if !api.CanTransition(f, to) {
			return api.StateIdle, false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f, to)
		}
	}
	if m.swapper != nil {
		return m.swapTransition(ctx, user, from, to)
	}

	cur, err := m.GetState(ctx, user)
	if err != nil {
		return cur, false, err
	}
	if !slices.Contains(from, cur) {
		return cur, false, nil
	}
	if err := m.store.Set(ctx, m.keys.State(user), string(to), m.ttl); err != nil {
		return cur, false, err
	}
	m.observer.OnTransition(ctx, user, cur, to)
	return to, true, nil
}

func (m *Machine) swapTransition(ctx context.Context, user api.UserID, from []api.State, to api.State) (api.State, bool, error) {
	key := m.keys.State(user)
	expected := make([]string, len(from))
	for i, f := range from {
		expected[i] = string(f)
	}

	observed, swapped, err := m.swapper.CompareAndSwap(ctx, key, expected, string(api.StateIdle), string(to), m.ttl)
	if err != nil {
		return api.StateIdle, false, err
	}
	if swapped {
		prev, _ := api.ParseState(observed)
		m.observer.OnTransition(ctx, user, prev, to)
		return to, true, nil
	}

	cur, _ := api.ParseState(observed)
	if observed == string(cur) || !slices.Contains(from, cur) {
		return cur, false, nil
	}

	// A non-canonical stored value (unknown, or differently cased) counts as
	// the state it parses to. Swap against the exact bytes so a concurrent
	// writer still wins cleanly.
	observed, swapped, err = m.swapper.CompareAndSwap(ctx, key, []string{observed}, string(api.StateIdle), string(to), m.ttl)
	if err != nil {
		return api.StateIdle, false, err
	}
	if !swapped {
		latest, _ := api.ParseState(observed)
		return latest, false, nil
	}
	m.observer.OnTransition(ctx, user, cur, to)
	return to, true, nil
}
