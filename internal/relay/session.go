// Package relay implements the session table, idle-timeout batching and
// turn dispatch that sit between the callback endpoint and the agent.
package relay

import (
	"sync"
	"sync/atomic"
	"time"
)

// Part is one message body inside an open batch.
type Part struct {
	Body string
	At   time.Time
}

// Session tracks one user's open batch and activity recency. Batch
// mutation goes through mu; the batch timer handle lives here so re-arming
// can cancel the previous fire deterministically. Activity recency is an
// atomic so the table can rank sessions for eviction without taking
// session locks under the table lock.
type Session struct {
	mu sync.Mutex

	userID       string
	pending      []Part
	turns        int
	timer        *time.Timer
	lastActivity atomic.Int64 // unix nanos
}

// UserID returns the identity this session belongs to.
func (s *Session) UserID() string { return s.userID }

// LastActivity returns the last time a message was appended or the session
// was touched.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Turns returns how many batches this session has flushed.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// PendingLen returns the size of the open batch.
func (s *Session) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// touch refreshes activity recency without touching the batch.
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// append pushes a part onto the open batch and re-arms the idle timer.
// Caller supplies the timer factory so the armed duration and fire handler
// stay with the scheduler, not the session.
func (s *Session) append(part Part, arm func() *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, part)
	s.touch()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = arm()
}

// drain atomically swaps out the open batch and cancels the timer. An
// append racing in after drain returns belongs to the next batch.
func (s *Session) drain() []Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.pending) == 0 {
		return nil
	}
	drained := s.pending
	s.pending = nil
	s.turns++
	return drained
}
