package progress

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

// MemoryRecorder keeps results in process memory.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries map[api.UserID][]Entry
	now     func() time.Time
}

var _ Recorder = (*MemoryRecorder)(nil)

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		entries: make(map[api.UserID][]Entry),
		now:     time.Now,
	}
}

func (r *MemoryRecorder) Record(ctx context.Context, user api.UserID, result api.QuizResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[user] = append(r.entries[user], NewEntry(user, result, r.now()))
	return nil
}

func (r *MemoryRecorder) Stats(ctx context.Context, user api.UserID) (api.ProgressStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[user]
	stats := api.ProgressStats{Attempts: len(entries), WeakTopics: []string{}}
	if len(entries) == 0 {
		return stats, nil
	}

	var sum float64
	for _, e := range entries {
		sum += e.Score
	}
	stats.AvgScore = roundScore(sum / float64(len(entries)))

	recent := slices.Clone(entries)
	slices.Reverse(recent)
	if len(recent) > weakTopicWindow {
		recent = recent[:weakTopicWindow]
	}
	lists := make([][]string, len(recent))
	for i, e := range recent {
		lists[i] = e.WeakTopics
	}
	stats.WeakTopics = mergeWeakTopics(lists...)
	return stats, nil
}

// Entries returns a copy of the user's results, oldest first.
func (r *MemoryRecorder) Entries(user api.UserID) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries[user])
}
