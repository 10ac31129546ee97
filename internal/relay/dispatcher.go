package relay

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WxClaw/WxClaw/internal/bus"
)

// segmentSeparator delimits the parts of a merged turn, and is the marker
// the model uses to split its reply into multiple outbound messages.
const segmentSeparator = "<SEGMENTATION>"

// MergeTurn joins batch parts into one logical request in arrival order.
// Each part is stamped with its receive time so the model sees the pacing
// of the original messages.
func MergeTurn(parts []Part) string {
	lines := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		lines = append(lines, "["+p.At.Format("15:04:05")+"] "+p.Body)
		if i < len(parts)-1 {
			lines = append(lines, segmentSeparator)
		}
	}
	return strings.Join(lines, "\n")
}

// SplitSegments splits a model reply on the segment marker, trimming
// whitespace and dropping empty segments.
func SplitSegments(reply string) []string {
	var segments []string
	for _, seg := range strings.Split(reply, segmentSeparator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// BusDispatcher publishes completed turns onto the message bus for the
// agent loop. A failed turn downstream never rolls the batch back; the
// batch is consumed the moment it is handed off.
type BusDispatcher struct {
	bus     *bus.MessageBus
	channel string
}

// NewBusDispatcher creates a dispatcher publishing to channel on b.
func NewBusDispatcher(b *bus.MessageBus, channel string) *BusDispatcher {
	return &BusDispatcher{bus: b, channel: channel}
}

// DispatchTurn merges the batch and publishes it inbound. Runs the
// publish on its own goroutine so a momentarily full bus never blocks the
// timer or sweep path.
func (d *BusDispatcher) DispatchTurn(userID string, parts []Part) {
	msg := &bus.InboundMessage{
		Channel:   d.channel,
		SenderID:  userID,
		ChatID:    userID,
		TraceID:   uuid.NewString(),
		Content:   MergeTurn(parts),
		Timestamp: time.Now(),
	}
	go func() {
		d.bus.PublishInbound(msg)
		slog.Info("Turn dispatched", "user", userID, "trace_id", msg.TraceID, "parts", len(parts))
	}()
}
