package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultIdleTimeout is how long a session may sit without traffic
	// before the reaper removes it.
	DefaultIdleTimeout = time.Hour

	// DefaultReapInterval is how often the reaper scans.
	DefaultReapInterval = 5 * time.Minute
)

// Store owns every live session. All methods are safe for concurrent use.
type Store struct {
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time
	onCreate    func()
	onReap      func(removed int)

	mu       sync.Mutex
	sessions map[string]*Session
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleTimeout overrides the idle cutoff.
func WithIdleTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCreateHook registers a callback invoked after each Create.
func WithCreateHook(hook func()) StoreOption {
	return func(s *Store) { s.onCreate = hook }
}

// WithReapHook registers a callback invoked after each sweep that removed
// at least one session.
func WithReapHook(hook func(removed int)) StoreOption {
	return func(s *Store) { s.onReap = hook }
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		logger:      logger,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new session under a fresh id.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.now)
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	if s.onCreate != nil {
		s.onCreate()
	}
	s.logger.Info("session created", "session_id", sess.ID(), "active", count)
	return sess
}

// Get returns a session by id and marks it active.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// Remove deletes a session, reporting whether it existed. Any bound
// connection is closed in the background so a slow peer cannot stall the
// caller.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if conn := sess.ConnHandle(); conn != nil {
		go func() { _ = conn.Close() }()
	}
	s.logger.Info("session removed", "session_id", id, "active", count)
	return true
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Reap removes sessions idle past the cutoff and returns how many it
// removed. Idleness is re-checked at removal time, so a session that saw
// traffic during the scan survives.
func (s *Store) Reap() int {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	candidates := make([]*Session, 0)
	for _, sess := range s.sessions {
		if sess.LastActivity().Before(cutoff) {
			candidates = append(candidates, sess)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, sess := range candidates {
		s.mu.Lock()
		current, ok := s.sessions[sess.ID()]
		stale := ok && current == sess && sess.LastActivity().Before(cutoff)
		if stale {
			delete(s.sessions, sess.ID())
		}
		s.mu.Unlock()
		if !stale {
			continue
		}
		if conn := sess.ConnHandle(); conn != nil {
			go func() { _ = conn.Close() }()
		}
		removed++
		s.logger.Info("session reaped",
			"session_id", sess.ID(),
			"idle_since", sess.LastActivity())
	}
	if removed > 0 && s.onReap != nil {
		s.onReap(removed)
	}
	return removed
}

// Run reaps on the given interval until the context is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Broadcast sends a payload to every session with a bound connection and
// returns the number of successful deliveries. Failed sends are logged and
// skipped; delivery is best-effort.
func (s *Store) Broadcast(v any) int {
	s.mu.Lock()
	type target struct {
		id   string
		conn Conn
	}
	targets := make([]target, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if conn := sess.ConnHandle(); conn != nil {
			targets = append(targets, target{id: id, conn: conn})
		}
	}
	s.mu.Unlock()

	delivered := 0
	for _, t := range targets {
		if err := t.conn.SendJSON(v); err != nil {
			s.logger.Warn("broadcast send failed",
				"session_id", t.id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
