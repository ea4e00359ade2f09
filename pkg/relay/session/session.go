// Package session holds live voice-chat sessions and their in-memory store.
package session

import (
	"sync"
	"time"
)

// HistoryLimit is the number of completed turns a session retains.
const HistoryLimit = 10

// Conn is the transport handle bound to a session while a client is
// connected. Implementations must be safe for concurrent use; broadcasts and
// the per-connection dispatch loop write through the same handle.
type Conn interface {
	SendJSON(v any) error
	Close() error
}

// Turn is one completed user/assistant exchange.
type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
}

// Session is one client conversation. At most one connection handle is bound
// at a time; a reconnect replaces the previous handle.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu           sync.Mutex
	lastActivity time.Time
	conn         Conn
	history      []Turn
	provider     string
	model        string
	settings     map[string]string
}

func newSession(id string, now func() time.Time) *Session {
	ts := now()
	return &Session{
		id:           id,
		createdAt:    ts,
		now:          now,
		lastActivity: ts,
		settings:     make(map[string]string),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Touch marks the session active now.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}

// LastActivity returns the last time the session saw traffic.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Bind attaches a connection handle, closing any previous one.
func (s *Session) Bind(conn Conn) {
	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.lastActivity = s.now()
	s.mu.Unlock()
	if prev != nil && prev != conn {
		_ = prev.Close()
	}
}

// Unbind detaches the handle if it is still the bound one. A handle that was
// already replaced by a reconnect is left alone.
func (s *Session) Unbind(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}

// ConnHandle returns the bound connection handle, or nil.
func (s *Session) ConnHandle() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// AppendTurn records a completed exchange, evicting the oldest turn beyond
// HistoryLimit, and marks the session active.
func (s *Session) AppendTurn(user, assistant, provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{
		Timestamp: s.now(),
		User:      user,
		Assistant: assistant,
		Provider:  provider,
		Model:     model,
	})
	if len(s.history) > HistoryLimit {
		s.history = s.history[len(s.history)-HistoryLimit:]
	}
	s.lastActivity = s.now()
}

// History returns a copy of the retained turns, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// SetPreference records the provider and model the next chat should request.
// Empty values keep the previous preference.
func (s *Session) SetPreference(provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if provider != "" {
		s.provider = provider
	}
	if model != "" {
		s.model = model
	}
}

// SetProviderPreference switches the provider and replaces the model
// preference with the one given. An empty model clears the preference so
// the new provider's own default applies instead of a stale cross-provider
// model.
func (s *Session) SetProviderPreference(provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if provider != "" {
		s.provider = provider
	}
	s.model = model
}

// Preference returns the session's provider and model preference. Empty
// strings mean "router default".
func (s *Session) Preference() (provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider, s.model
}

// SetSetting stores one client-supplied setting.
func (s *Session) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// Setting reads one client-supplied setting.
func (s *Session) Setting(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok
}
