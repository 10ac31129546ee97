package relay

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCapacity is returned when the table is at its cap and no session can
// be evicted to make room. The eviction policy should make this
// unreachable; it exists so a logic bug fails loudly instead of corrupting
// the map.
var ErrCapacity = errors.New("session table at capacity")

// Table is a bounded map from user identity to session state. The table
// lock is held only for map operations, never while waiting on a session
// lock or on network I/O.
type Table struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
}

// NewTable creates a table bounded to maxSessions concurrently tracked
// identities. maxSessions <= 0 means unbounded.
func NewTable(maxSessions int) *Table {
	return &Table{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// GetOrCreate returns the session for identity, creating it if needed.
// When the table is full and identity is new, the least-recently-active
// session is removed first and returned as evicted so the caller can flush
// its open batch best-effort (outside the table lock).
func (t *Table) GetOrCreate(identity string) (s *Session, evicted *Session, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[identity]; ok {
		return s, nil, nil
	}

	if t.maxSessions > 0 && len(t.sessions) >= t.maxSessions {
		victim := t.oldestLocked()
		if victim == nil {
			return nil, nil, ErrCapacity
		}
		delete(t.sessions, victim.userID)
		evicted = victim
		slog.Info("Session evicted", "user", victim.userID, "idle_since", victim.LastActivity())
	}

	s = &Session{userID: identity}
	s.touch()
	t.sessions[identity] = s
	slog.Info("Session created", "user", identity, "tracked", len(t.sessions))
	return s, evicted, nil
}

// oldestLocked picks the session with the oldest last-activity timestamp.
func (t *Table) oldestLocked() *Session {
	var victim *Session
	for _, s := range t.sessions {
		if victim == nil || s.lastActivity.Load() < victim.lastActivity.Load() {
			victim = s
		}
	}
	return victim
}

// Touch refreshes the activity timestamp for identity, if tracked.
func (t *Table) Touch(identity string) {
	t.mu.Lock()
	s := t.sessions[identity]
	t.mu.Unlock()
	if s != nil {
		s.touch()
	}
}

// Get returns the tracked session for identity, if any.
func (t *Table) Get(identity string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[identity]
	return s, ok
}

// Remove drops identity from the table.
func (t *Table) Remove(identity string) {
	t.mu.Lock()
	delete(t.sessions, identity)
	t.mu.Unlock()
}

// SweepExpired removes sessions idle past idleTimeout and returns them so
// the caller can flush any open batches before they are forgotten.
func (t *Table) SweepExpired(now time.Time, idleTimeout time.Duration) []*Session {
	t.mu.Lock()
	var expired []*Session
	for id, s := range t.sessions {
		if now.Sub(s.LastActivity()) > idleTimeout {
			delete(t.sessions, id)
			expired = append(expired, s)
		}
	}
	t.mu.Unlock()

	for _, s := range expired {
		slog.Info("Session expired", "user", s.userID)
	}
	return expired
}

// Len returns the number of tracked identities.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
