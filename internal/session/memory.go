package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryEntry struct {
	ctx       Context
	expiresAt time.Time
}

// MemoryStore is an in-process Store with a background sweeper for expired
// entries. Reads re-check the deadline themselves, so correctness does not
// depend on the sweeper having run.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	stopOnce    sync.Once
	logger      *slog.Logger
}

// NewMemoryStore creates a memory store sweeping at the given interval.
func NewMemoryStore(sweepInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}

	s := &MemoryStore{
		entries:     make(map[string]memoryEntry),
		sweepTicker: time.NewTicker(sweepInterval),
		sweepDone:   make(chan struct{}),
		logger:      logger,
	}
	go s.sweep()
	return s
}

func sessionKey(owner, sessionID string) string {
	// The separator cannot appear in either part unescaped; a NUL byte
	// keeps distinct (owner, session) pairs from colliding.
	return owner + "\x00" + sessionID
}

func (s *MemoryStore) Get(_ context.Context, owner, sessionID string) (Context, error) {
	key := sessionKey(owner, sessionID)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return Context{}, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock in case a concurrent Put renewed
		// the entry.
		if cur, ok := s.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return Context{}, ErrNotFound
	}
	return entry.ctx, nil
}

func (s *MemoryStore) Put(_ context.Context, sc Context, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionKey(sc.Owner, sc.SessionID)] = memoryEntry{
		ctx:       sc,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, owner, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey(owner, sessionID))
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Len reports the number of entries currently held, including any expired
// entries the sweeper has not yet removed.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep() {
	for {
		select {
		case <-s.sweepTicker.C:
			now := time.Now()
			expired := 0
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
					expired++
				}
			}
			s.mu.Unlock()
			if expired > 0 {
				s.logger.Debug("Swept expired session contexts", "count", expired)
			}
		case <-s.sweepDone:
			return
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.sweepTicker.Stop()
		close(s.sweepDone)
	})
	return nil
}
