package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-lookup/internal/screen"
)

var (
	// ErrNotFound is returned when no session exists for a given id.
	ErrNotFound = errors.New("session not found")
)

// Session is one live screen with its bookkeeping.
type Session struct {
	ID        string
	Screen    *screen.Screen
	CreatedAt time.Time
	lastSeen  time.Time
}

// MemoryStore is a concurrency-safe in-memory registry of screen sessions.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id
	data map[string]*Session

	newScreen func() *screen.Screen

	// retention configuration
	maxCount int           // max number of live sessions
	maxIdle  time.Duration // idle sessions older than this are swept

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxCount or maxIdle is <= 0, it is treated as unlimited.
func NewMemoryStore(newScreen func() *screen.Screen, maxCount int, maxIdle time.Duration) *MemoryStore {
	return &MemoryStore{
		data:      make(map[string]*Session),
		newScreen: newScreen,
		maxCount:  maxCount,
		maxIdle:   maxIdle,
		now:       time.Now,
	}
}

// Create opens a new session and enforces the count limit by closing the least recently
// used sessions.
func (s *MemoryStore) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Screen:    s.newScreen(),
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.data[sess.ID] = sess

	var evicted []*Session
	if s.maxCount > 0 && len(s.data) > s.maxCount {
		all := make([]*Session, 0, len(s.data))
		for _, other := range s.data {
			if other.ID != sess.ID {
				all = append(all, other)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].lastSeen.Before(all[j].lastSeen) })

		over := len(s.data) - s.maxCount
		for _, old := range all[:over] {
			delete(s.data, old.ID)
			evicted = append(evicted, old)
		}
	}
	s.mu.Unlock()

	closeAll(evicted)
	return sess
}

// Get returns the session for id and marks it as seen.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Delete closes and removes the session for id.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.data[id]
	if ok {
		delete(s.data, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	sess.Screen.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Sweep closes and removes sessions idle for longer than maxIdle. It returns how many were
// removed.
func (s *MemoryStore) Sweep() int {
	if s.maxIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.maxIdle)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.data {
		if sess.lastSeen.Before(cutoff) {
			delete(s.data, id)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	closeAll(expired)
	return len(expired)
}

// CloseAll closes and removes every session.
func (s *MemoryStore) CloseAll() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.data))
	for id, sess := range s.data {
		delete(s.data, id)
		all = append(all, sess)
	}
	s.mu.Unlock()

	closeAll(all)
}

// Screens are closed outside the store lock; Close waits for in-flight requests.
func closeAll(sessions []*Session) {
	for _, sess := range sessions {
		sess.Screen.Close()
	}
}
