package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/petrijr/studyflow/internal/persistence"
	"github.com/petrijr/studyflow/pkg/api"
)

// QuizStore keeps the active quiz of each user as a single JSON blob.
type QuizStore struct {
	store  persistence.Store
	keys   persistence.Keys
	ttl    time.Duration
	logger *slog.Logger
}

// NewQuizStore returns a QuizStore. ttl <= 0 selects DefaultQuizTTL and a
// nil logger discards output.
func NewQuizStore(store persistence.Store, keys persistence.Keys, ttl time.Duration, logger *slog.Logger) *QuizStore {
	if ttl <= 0 {
		ttl = DefaultQuizTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &QuizStore{store: store, keys: keys, ttl: ttl, logger: logger}
}

// Set overwrites the quiz session.
func (s *QuizStore) Set(ctx context.Context, user api.UserID, q api.QuizSession) error {
	data, err := persistence.EncodeValue(q)
	if err != nil {
		return &api.ValidationError{Field: "quiz", Reason: err.Error()}
	}
	return s.store.Set(ctx, s.keys.Quiz(user), string(data), s.ttl)
}

// Get returns the quiz session, or nil when there is none. A blob that
// cannot be decoded is treated as absent.
func (s *QuizStore) Get(ctx context.Context, user api.UserID) (*api.QuizSession, error) {
	key := s.keys.Quiz(user)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	q, err := persistence.DecodeValue[api.QuizSession]([]byte(raw))
	if err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable quiz session",
			slog.String("user", string(user)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return nil, nil
	}
	return &q, nil
}

// Update applies patch to the stored quiz and writes it back with a fresh
// TTL. It returns nil without writing when there is no quiz.
func (s *QuizStore) Update(ctx context.Context, user api.UserID, patch api.QuizPatch) (*api.QuizSession, error) {
	q, err := s.Get(ctx, user)
	if err != nil || q == nil {
		return nil, err
	}
	patch.Apply(q)
	if err := s.Set(ctx, user, *q); err != nil {
		return nil, err
	}
	return q, nil
}

// Clear removes the quiz session.
func (s *QuizStore) Clear(ctx context.Context, user api.UserID) error {
	return s.store.Delete(ctx, s.keys.Quiz(user))
}
