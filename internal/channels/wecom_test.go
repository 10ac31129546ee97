package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WxClaw/WxClaw/internal/bus"
	"github.com/WxClaw/WxClaw/internal/config"
	"github.com/WxClaw/WxClaw/internal/history"
	"github.com/WxClaw/WxClaw/internal/relay"
	"github.com/WxClaw/WxClaw/internal/wecom"
)

// 43 chars of 'A' decode (with the implied '=') to 32 zero bytes.
const testAESKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type recordingDispatcher struct {
	mu    sync.Mutex
	turns []string
}

func (d *recordingDispatcher) DispatchTurn(userID string, parts []relay.Part) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.turns = append(d.turns, userID+": "+relay.MergeTurn(parts))
}

func (d *recordingDispatcher) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.turns...)
}

func newTestChannel(t *testing.T, apiBase string) (*WeComChannel, *relay.Table, *recordingDispatcher) {
	t.Helper()

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	disp := &recordingDispatcher{}
	table := relay.NewTable(10)
	batcher := relay.NewBatcher(table, disp, time.Hour, 2*time.Hour)

	cfg := config.WeComConfig{
		CorpID:         "corp1",
		AgentID:        1000002,
		Token:          "token",
		EncodingAESKey: testAESKey,
		CorpSecret:     "secret",
		APIBase:        apiBase,
	}
	ch, err := NewWeComChannel(cfg, bus.NewMessageBus(), batcher, store)
	if err != nil {
		t.Fatalf("NewWeComChannel() error: %v", err)
	}
	return ch, table, disp
}

func textMessage(msgID, user, content string) *wecom.InboundMessage {
	return &wecom.InboundMessage{
		ToUser:     "corp1",
		FromUser:   user,
		CreateTime: time.Now().Unix(),
		MsgType:    wecom.MsgTypeText,
		Content:    content,
		MsgID:      msgID,
	}
}

func TestInboundTextIsBatched(t *testing.T) {
	ch, table, _ := newTestChannel(t, "")

	ch.handleInbound(textMessage("m1", "alice", "hello"))

	s, ok := table.Get("alice")
	if !ok {
		t.Fatal("expected a tracked session for alice")
	}
	if s.PendingLen() != 1 {
		t.Errorf("expected 1 pending part, got %d", s.PendingLen())
	}
}

func TestDuplicateDeliveryIsIgnored(t *testing.T) {
	ch, table, _ := newTestChannel(t, "")

	ch.handleInbound(textMessage("m1", "alice", "hello"))
	ch.handleInbound(textMessage("m1", "alice", "hello"))

	s, _ := table.Get("alice")
	if s.PendingLen() != 1 {
		t.Errorf("duplicate delivery batched: %d parts", s.PendingLen())
	}
}

func TestNonTextMessagesAreDropped(t *testing.T) {
	ch, table, _ := newTestChannel(t, "")

	msg := textMessage("m1", "alice", "")
	msg.MsgType = "image"
	ch.handleInbound(msg)

	if _, ok := table.Get("alice"); ok {
		t.Error("non-text message must not open a session")
	}
}

func TestMissingMsgIDSkipsDedup(t *testing.T) {
	ch, table, _ := newTestChannel(t, "")

	// Two deliveries without ids are two messages, not duplicates.
	ch.handleInbound(textMessage("", "alice", "one"))
	ch.handleInbound(textMessage("", "alice", "two"))

	s, _ := table.Get("alice")
	if s.PendingLen() != 2 {
		t.Errorf("expected 2 parts, got %d", s.PendingLen())
	}
}

func TestSendSplitsSegments(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "gettoken") {
			json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "access_token": "tok", "expires_in": 7200})
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		json.Unmarshal(body, &req)
		mu.Lock()
		sent = append(sent, req.Text.Content)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"errcode": 0})
	}))
	defer server.Close()

	ch, _, _ := newTestChannel(t, server.URL)

	err := ch.Send(context.Background(), &bus.OutboundMessage{
		Channel: "wecom",
		ChatID:  "alice",
		Content: "first<SEGMENTATION>second",
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 || sent[0] != "first" || sent[1] != "second" {
		t.Errorf("expected two ordered segments, got %v", sent)
	}
}

func TestSendEmptyReplyIsNoop(t *testing.T) {
	ch, _, _ := newTestChannel(t, "http://127.0.0.1:0")

	// No segments means no API call; an unreachable apiBase proves it.
	err := ch.Send(context.Background(), &bus.OutboundMessage{ChatID: "alice", Content: "  "})
	if err != nil {
		t.Errorf("empty reply must be a no-op, got %v", err)
	}
}
