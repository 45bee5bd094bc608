package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds sessions in memory and evicts idle ones.
//
// A janitor goroutine sweeps the store every half TTL; call Close to stop it.
type Store struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewStore creates a store whose sessions expire after ttl of inactivity and
// starts its janitor.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Create starts a new session with a random ID.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", sess.ID)
	return sess
}

// Get returns the session with the given ID and marks it as recently used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}

func (s *Store) janitor() {
	defer close(s.done)

	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictExpired removes idle sessions and returns how many were dropped.
func (s *Store) evictExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("sessions evicted", "count", evicted, "remaining", len(s.sessions))
	}
	return evicted
}
