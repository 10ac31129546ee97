package channels

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/WxClaw/WxClaw/internal/bus"
	"github.com/WxClaw/WxClaw/internal/config"
	"github.com/WxClaw/WxClaw/internal/history"
	"github.com/WxClaw/WxClaw/internal/relay"
	"github.com/WxClaw/WxClaw/internal/wecom"
)

// WeComChannel bridges WeChat Work callbacks and the message bus. Inbound
// messages go through deduplication and the batcher; outbound replies are
// split into segments and sent through the platform API.
type WeComChannel struct {
	BaseChannel
	handler *wecom.CallbackHandler
	client  *wecom.Client
	batcher *relay.Batcher
	history *history.Store
}

// NewWeComChannel creates the channel. The callback handler and send client
// share the credentials from cfg.
func NewWeComChannel(cfg config.WeComConfig, messageBus *bus.MessageBus, batcher *relay.Batcher, store *history.Store) (*WeComChannel, error) {
	codec, err := wecom.NewCodec(cfg.EncodingAESKey, cfg.CorpID)
	if err != nil {
		return nil, err
	}

	c := &WeComChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		client:      wecom.NewClient(cfg.CorpID, cfg.CorpSecret, cfg.AgentID, cfg.APIBase),
		batcher:     batcher,
		history:     store,
	}
	c.handler = wecom.NewCallbackHandler(cfg.Token, codec, c.handleInbound)
	return c, nil
}

func (c *WeComChannel) Name() string { return "wecom" }

// Handler returns the HTTP handler for the platform callback endpoint.
func (c *WeComChannel) Handler() http.Handler { return c.handler }

func (c *WeComChannel) Start(ctx context.Context) error {
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("Outbound delivery failed", "user", msg.ChatID, "trace_id", msg.TraceID, "error", err)
		}
	})
	return nil
}

func (c *WeComChannel) Stop() error { return nil }

// Send splits the reply on the segmentation marker and delivers the parts
// in order.
func (c *WeComChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	segments := relay.SplitSegments(msg.Content)
	if len(segments) == 0 {
		return nil
	}
	return c.client.SendSegments(ctx, msg.ChatID, segments)
}

// handleInbound is invoked by the callback handler after a message has been
// authenticated and decrypted. It must not block: the HTTP acknowledgement
// is written right after it returns.
func (c *WeComChannel) handleInbound(msg *wecom.InboundMessage) {
	if msg.MsgID != "" && c.history != nil {
		fresh, err := c.history.MarkProcessed(msg.MsgID)
		if err != nil {
			slog.Warn("Dedup check failed", "msg_id", msg.MsgID, "error", err)
		} else if !fresh {
			slog.Info("Duplicate delivery ignored", "msg_id", msg.MsgID, "user", msg.FromUser)
			return
		}
	}

	if msg.MsgType != wecom.MsgTypeText {
		slog.Info("Unsupported message type ignored", "type", msg.MsgType, "user", msg.FromUser)
		return
	}

	if err := c.batcher.Append(msg.FromUser, msg.Content, msg.ReceivedAt()); err != nil {
		slog.Error("Message dropped", "user", msg.FromUser, "error", err)
	}
}
