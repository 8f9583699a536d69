package persistence

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

var errWrongType = errors.New("operation against a key holding the wrong kind of value")

type memoryEntry struct {
	value     string
	hash      map[string]string
	expiresAt time.Time // zero means no expiry
}

// InMemoryStore is a goroutine-safe Store backed by a map, with per-key
// expiry evaluated lazily against its clock. It also implements Swapper.
type InMemoryStore struct {
	mu   sync.Mutex
	data map[string]*memoryEntry
	now  func() time.Time
}

// NewInMemoryStore creates a new InMemoryStore using the wall clock.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithClock(time.Now)
}

// NewInMemoryStoreWithClock creates an InMemoryStore whose expiry checks
// use now. Tests use it to move time forward without sleeping.
func NewInMemoryStoreWithClock(now func() time.Time) *InMemoryStore {
	if now == nil {
		now = time.Now
	}
	return &InMemoryStore{
		data: make(map[string]*memoryEntry),
		now:  now,
	}
}

var (
	_ Store   = (*InMemoryStore)(nil)
	_ Swapper = (*InMemoryStore)(nil)
)

// live returns the entry at key, dropping it first if it has expired.
// Callers must hold s.mu.
func (s *InMemoryStore) live(key string) *memoryEntry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *InMemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return "", ErrNotFound
	}
	if e.hash != nil {
		return "", &api.StoreError{Op: "get", Key: key, Err: errWrongType}
	}
	return e.value, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &memoryEntry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return map[string]string{}, nil
	}
	if e.hash == nil {
		return nil, &api.StoreError{Op: "hgetall", Key: key, Err: errWrongType}
	}
	return maps.Clone(e.hash), nil
}

func (s *InMemoryStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e != nil && e.hash == nil {
		return &api.StoreError{Op: "hset", Key: key, Err: errWrongType}
	}
	if e == nil {
		if len(fields) == 0 {
			// Nothing to create; expiring a missing key is a no-op.
			return nil
		}
		e = &memoryEntry{hash: make(map[string]string, len(fields))}
		s.data[key] = e
	}
	maps.Copy(e.hash, fields)
	if ttl > 0 {
		e.expiresAt = s.expiry(ttl)
	}
	return nil
}

func (s *InMemoryStore) CompareAndSwap(ctx context.Context, key string, expected []string, missing, value string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observed := missing
	if e := s.live(key); e != nil {
		if e.hash != nil {
			return "", false, &api.StoreError{Op: "cas", Key: key, Err: errWrongType}
		}
		observed = e.value
	}
	if !slices.Contains(expected, observed) {
		return observed, false, nil
	}
	s.data[key] = &memoryEntry{value: value, expiresAt: s.expiry(ttl)}
	return observed, true, nil
}

// TTL returns the remaining lifetime of key, zero if it has no expiry and
// false if it does not exist.
func (s *InMemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(s.now()), true
}
