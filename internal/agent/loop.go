// Package agent implements the turn-handling loop between the bus and the
// LLM provider.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/WxClaw/WxClaw/internal/bus"
	"github.com/WxClaw/WxClaw/internal/history"
	"github.com/WxClaw/WxClaw/internal/provider"
	"github.com/WxClaw/WxClaw/internal/tools"
)

// LoopOptions contains configuration for the agent loop.
type LoopOptions struct {
	Bus           *bus.MessageBus
	Provider      provider.LLMProvider
	History       *history.Store
	PersonaPath   string
	Workspace     string
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	HistoryWindow int
}

// Loop consumes completed turns from the bus, runs the model (with the
// tool-call loop) and publishes reply segments outbound.
type Loop struct {
	bus           *bus.MessageBus
	provider      provider.LLMProvider
	history       *history.Store
	registry      *tools.Registry
	persona       string
	workspace     string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	historyWindow int
}

// NewLoop creates a new agent loop.
func NewLoop(opts LoopOptions) *Loop {
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = 20
	}

	registry := tools.NewRegistry()

	loop := &Loop{
		bus:           opts.Bus,
		provider:      opts.Provider,
		history:       opts.History,
		registry:      registry,
		persona:       loadPersona(opts.PersonaPath),
		workspace:     opts.Workspace,
		model:         opts.Model,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
		maxIterations: maxIter,
		historyWindow: opts.HistoryWindow,
	}

	loop.registerDefaultTools()

	return loop
}

func (l *Loop) registerDefaultTools() {
	root := func() string { return l.workspace }
	l.registry.Register(tools.NewReadFileTool(root))
	l.registry.Register(tools.NewWriteFileTool(root))
	l.registry.Register(tools.NewReplaceInFileTool(root))
	l.registry.Register(tools.NewListFilesTool(root))
	l.registry.Register(tools.NewCreatePathTool(root))
	l.registry.Register(tools.NewDeletePathTool(root))
	l.registry.Register(tools.NewSearchFilesTool(root))
	l.registry.Register(tools.NewFetchURLTool())
}

// Registry exposes the tool registry, mainly for tests.
func (l *Loop) Registry() *tools.Registry {
	return l.registry
}

// Run starts the agent loop, processing turns from the bus.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Agent loop started", "model", l.model, "tools", len(l.registry.List()))

	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // Context cancelled, normal shutdown
			}
			slog.Error("Failed to consume turn", "error", err)
			continue
		}

		l.processTurn(ctx, msg)
	}
}

// processTurn runs one user turn through the model. Failures are logged
// and swallowed: the batch is consumed either way, the user simply gets no
// reply for this turn.
func (l *Loop) processTurn(ctx context.Context, msg *bus.InboundMessage) {
	start := time.Now()
	slog.Info("Turn started", "user", msg.SenderID, "trace_id", msg.TraceID, "chars", len(msg.Content))

	reply, err := l.runModel(ctx, msg)
	if err != nil {
		slog.Error("Turn failed", "user", msg.SenderID, "trace_id", msg.TraceID, "error", err)
		return
	}

	if l.history != nil {
		if err := l.history.Append(msg.SenderID, "user", msg.Content); err != nil {
			slog.Warn("History append failed", "user", msg.SenderID, "error", err)
		}
		if err := l.history.Append(msg.SenderID, "assistant", reply); err != nil {
			slog.Warn("History append failed", "user", msg.SenderID, "error", err)
		}
	}

	if strings.TrimSpace(reply) == "" {
		slog.Warn("Turn produced empty reply", "user", msg.SenderID, "trace_id", msg.TraceID)
		return
	}

	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		TraceID: msg.TraceID,
		Content: reply,
	})

	slog.Info("Turn completed", "user", msg.SenderID, "trace_id", msg.TraceID,
		"duration", time.Since(start))
}

// runModel builds the conversation and runs the tool-call loop until the
// model answers with plain content or the iteration cap is hit.
func (l *Loop) runModel(ctx context.Context, msg *bus.InboundMessage) (string, error) {
	messages := l.buildMessages(msg)

	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       l.registry.Definitions(),
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, err := l.registry.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				result = fmt.Sprintf("Error: %v", err)
			}
			slog.Info("Tool executed", "user", msg.SenderID, "tool", tc.Name, "trace_id", msg.TraceID)
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d iterations", l.maxIterations)
}

// buildMessages assembles persona, turn context, recent history and the
// merged user turn.
func (l *Loop) buildMessages(msg *bus.InboundMessage) []provider.Message {
	var messages []provider.Message

	if l.persona != "" {
		messages = append(messages, provider.Message{Role: "system", Content: l.persona})
	}

	preamble := fmt.Sprintf("<time>%s <channel>%s <user_id>%s",
		time.Now().Format("2006-01-02 15:04:05 MST"), msg.Channel, msg.SenderID)
	messages = append(messages, provider.Message{Role: "system", Content: preamble})

	if l.history != nil {
		records, err := l.history.Recent(msg.SenderID, l.historyWindow)
		if err != nil {
			slog.Warn("History load failed", "user", msg.SenderID, "error", err)
		}
		for _, r := range records {
			messages = append(messages, provider.Message{Role: r.Role, Content: r.Content})
		}
	}

	messages = append(messages, provider.Message{Role: "user", Content: msg.Content})
	return messages
}

func loadPersona(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Persona file not loaded", "path", path, "error", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
