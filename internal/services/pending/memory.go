package pending

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	interaction Interaction
	expiresAt   time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, userID int64, interaction Interaction) error {
	if err := interaction.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	s.entries[userID] = memoryEntry{interaction: interaction, expiresAt: now.Add(s.ttl)}
	return nil
}

// sweep drops entries of users who never came back. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for userID, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, userID)
		}
	}
}

func (s *MemoryStore) Take(_ context.Context, userID int64) (Interaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return Interaction{}, false, nil
	}
	delete(s.entries, userID)

	if !s.now().Before(entry.expiresAt) {
		return Interaction{}, false, nil
	}
	return entry.interaction, true, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
	return nil
}
