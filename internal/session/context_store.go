// Package session stores the supplementary data of a session: the context
// hash and the active quiz.
package session

import (
	"context"
	"time"

	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/pkg/api"
)

// Record lifetimes.
const (
	DefaultContextTTL = 7 * 24 * time.Hour
	DefaultQuizTTL    = 2 * time.Hour
)

// ContextStore keeps the per-user context hash. String values are stored
// verbatim and everything else as JSON.
type ContextStore struct {
	store persistence.Store
	keys  persistence.Keys
	ttl   time.Duration
}

// NewContextStore returns a ContextStore. ttl <= 0 selects DefaultContextTTL.
func NewContextStore(store persistence.Store, keys persistence.Keys, ttl time.Duration) *ContextStore {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &ContextStore{store: store, keys: keys, ttl: ttl}
}

// Set merges fields into the context and renews its TTL, also when fields
// is empty.
func (s *ContextStore) Set(ctx context.Context, user api.UserID, fields map[string]any) error {
	encoded, err := persistence.EncodeFields(fields)
	if err != nil {
		return &api.ValidationError{Field: "context", Reason: err.Error()}
	}
	return s.store.HSet(ctx, s.keys.Context(user), encoded, s.ttl)
}

// Get returns every context field. Values that are not valid JSON come back
// as the stored string.
func (s *ContextStore) Get(ctx context.Context, user api.UserID) (api.SessionContext, error) {
	raw, err := s.store.HGetAll(ctx, s.keys.Context(user))
	if err != nil {
		return nil, err
	}
	return api.SessionContext(persistence.DecodeFields(raw)), nil
}

// Clear removes the context.
func (s *ContextStore) Clear(ctx context.Context, user api.UserID) error {
	return s.store.Delete(ctx, s.keys.Context(user))
}
