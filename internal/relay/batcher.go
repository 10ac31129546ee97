package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TurnDispatcher receives completed batches. Implementations must not
// block the caller for long: the batcher invokes it from timer goroutines.
type TurnDispatcher interface {
	DispatchTurn(userID string, parts []Part)
}

// Batcher aggregates a user's consecutive messages into one logical turn.
// Each session carries a single re-armable idle timer; the batch flushes
// after idleTimeout with no further append. A longer sessionTimeout bounds
// how long an idle session stays tracked at all.
type Batcher struct {
	table          *Table
	dispatcher     TurnDispatcher
	idleTimeout    time.Duration
	sessionTimeout time.Duration
	sweepInterval  time.Duration
}

// NewBatcher creates a batcher over table that hands flushed turns to
// dispatcher.
func NewBatcher(table *Table, dispatcher TurnDispatcher, idleTimeout, sessionTimeout time.Duration) *Batcher {
	sweep := sessionTimeout / 10
	if sweep < time.Second {
		sweep = time.Second
	}
	return &Batcher{
		table:          table,
		dispatcher:     dispatcher,
		idleTimeout:    idleTimeout,
		sessionTimeout: sessionTimeout,
		sweepInterval:  sweep,
	}
}

// Append adds a message body to the sender's open batch and (re)arms the
// idle timer. Creating the session may evict the least-recently-active
// one, whose open batch is flushed best-effort first.
func (b *Batcher) Append(userID, body string, at time.Time) error {
	s, evicted, err := b.table.GetOrCreate(userID)
	if err != nil {
		return fmt.Errorf("track session for %s: %w", userID, err)
	}
	if evicted != nil {
		b.flush(evicted)
	}

	s.append(Part{Body: body, At: at}, func() *time.Timer {
		return time.AfterFunc(b.idleTimeout, func() { b.flush(s) })
	})
	slog.Debug("Message batched", "user", userID, "pending", s.PendingLen())
	return nil
}

// flush drains the session's open batch and hands it off. The drain is
// atomic under the session lock, so an append racing the flush lands in
// the next batch rather than being lost or double-dispatched. An empty
// drain (timer raced a sweep flush) is a no-op.
func (b *Batcher) flush(s *Session) {
	parts := s.drain()
	if len(parts) == 0 {
		return
	}
	slog.Info("Batch flushed", "user", s.UserID(), "parts", len(parts), "turn", s.Turns())
	b.dispatcher.DispatchTurn(s.UserID(), parts)
}

// Run sweeps idle sessions until ctx is cancelled. Expired sessions get a
// best-effort flush before removal so no accepted message is dropped
// silently.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	slog.Info("Session sweeper started",
		"idle_timeout", b.idleTimeout, "session_timeout", b.sessionTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, s := range b.table.SweepExpired(now, b.sessionTimeout) {
				b.flush(s)
			}
		}
	}
}
