package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/WxClaw/WxClaw/internal/bus"
)

func TestMergeTurn(t *testing.T) {
	base := time.Date(2025, 3, 14, 10, 1, 2, 0, time.Local)
	parts := []Part{
		{Body: "hello", At: base},
		{Body: "are you there?", At: base.Add(3 * time.Second)},
	}

	got := MergeTurn(parts)
	want := "[10:01:02] hello\n<SEGMENTATION>\n[10:01:05] are you there?"
	if got != want {
		t.Errorf("MergeTurn() = %q, want %q", got, want)
	}
}

func TestMergeTurnSinglePart(t *testing.T) {
	base := time.Date(2025, 3, 14, 23, 59, 59, 0, time.Local)
	got := MergeTurn([]Part{{Body: "just one", At: base}})
	if got != "[23:59:59] just one" {
		t.Errorf("MergeTurn() = %q", got)
	}
	if strings.Contains(got, segmentSeparator) {
		t.Error("single part must not carry a separator")
	}
}

func TestMergeTurnEmpty(t *testing.T) {
	if got := MergeTurn(nil); got != "" {
		t.Errorf("MergeTurn(nil) = %q, want empty", got)
	}
}

func TestSplitSegments(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  []string
	}{
		{"no marker", "one plain reply", []string{"one plain reply"}},
		{"two segments", "first<SEGMENTATION>second", []string{"first", "second"}},
		{"trims whitespace", "  first  <SEGMENTATION>\n second \n", []string{"first", "second"}},
		{"drops empties", "<SEGMENTATION>only<SEGMENTATION><SEGMENTATION>", []string{"only"}},
		{"all empty", "  <SEGMENTATION>  ", nil},
	}
	for _, tc := range cases {
		got := SplitSegments(tc.reply)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: segment %d = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestBusDispatcherPublishesMergedTurn(t *testing.T) {
	msgBus := bus.NewMessageBus()
	d := NewBusDispatcher(msgBus, "wecom")

	base := time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local)
	d.DispatchTurn("alice", []Part{
		{Body: "ping", At: base},
		{Body: "pong", At: base.Add(time.Second)},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := msgBus.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound() error: %v", err)
	}

	if msg.Channel != "wecom" {
		t.Errorf("expected channel wecom, got %q", msg.Channel)
	}
	if msg.SenderID != "alice" || msg.ChatID != "alice" {
		t.Errorf("expected sender/chat alice, got %q/%q", msg.SenderID, msg.ChatID)
	}
	if msg.TraceID == "" {
		t.Error("expected a trace id")
	}
	want := "[08:00:00] ping\n<SEGMENTATION>\n[08:00:01] pong"
	if msg.Content != want {
		t.Errorf("merged content = %q, want %q", msg.Content, want)
	}
}
