package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/user"
)

type memEntry struct {
	user.OTPEntry
	expiresAt time.Time
}

type memoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

var _ user.OTPStore = (*memoryOTPStore)(nil)

// NewMemoryOTPStore keeps pending codes in process; used by tests and single instance setups without Redis.
func NewMemoryOTPStore() user.OTPStore {
	return &memoryOTPStore{entries: make(map[string]memEntry)}
}

// get must be called with mu held.
func (s *memoryOTPStore) get(email string) (memEntry, bool) {
	e, ok := s.entries[email]
	if !ok {
		return memEntry{}, false
	}
	if !core.NowFunc().Before(e.expiresAt) {
		delete(s.entries, email)
		return memEntry{}, false
	}
	return e, true
}

func (s *memoryOTPStore) Save(_ context.Context, email string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = memEntry{
		OTPEntry:  user.OTPEntry{Hash: hash},
		expiresAt: core.NowFunc().Add(ttl),
	}
	return nil
}

func (s *memoryOTPStore) Get(_ context.Context, email string) (user.OTPEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(email)
	if !ok {
		return user.OTPEntry{}, user.ErrOTPNotFound
	}
	return e.OTPEntry, nil
}

func (s *memoryOTPStore) IncrAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(email)
	if !ok {
		return 0, user.ErrOTPNotFound
	}
	e.Attempts++
	s.entries[email] = e
	return e.Attempts, nil
}

func (s *memoryOTPStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.entries, email)
	s.mu.Unlock()
	return nil
}
