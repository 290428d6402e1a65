package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"merobot/internal/domain"
	"merobot/internal/metrics"
	"merobot/internal/session"
	"merobot/internal/tool"
)

const (
	defaultMaxIterations = 10
	defaultMaxTokens     = 4096
	defaultTemperature   = 0.7

	clearedReply        = "Conversation history cleared. Let's start fresh!"
	emptyReplyFallback  = "I'm not sure how to respond to that."
	budgetReplyFallback = "I ran into a limit processing your request. Please try again."
)

// Loop is the core engine: consume an inbound message, run the model with
// iterative tool execution, publish the reply. Messages are processed
// strictly one at a time so each turn sees the session state the previous
// turn left behind.
type Loop struct {
	provider      domain.Provider
	sessions      *session.Store
	contextB      *ContextBuilder
	tools         *tool.Registry
	bus           domain.MessageBus
	logger        *slog.Logger
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int

	messagesTotal  *metrics.Counter
	modelCalls     *metrics.Counter
	toolExecutions *metrics.Counter
}

// LoopConfig carries the loop's dependencies and tuning parameters.
type LoopConfig struct {
	Provider      domain.Provider
	Sessions      *session.Store
	Context       *ContextBuilder
	Tools         *tool.Registry
	Bus           domain.MessageBus
	Logger        *slog.Logger
	Metrics       *metrics.MetricsCollector
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetricsCollector()
	}
	return &Loop{
		provider:       cfg.Provider,
		sessions:       cfg.Sessions,
		contextB:       cfg.Context,
		tools:          cfg.Tools,
		bus:            cfg.Bus,
		logger:         cfg.Logger,
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		maxIterations:  cfg.MaxIterations,
		messagesTotal:  cfg.Metrics.Counter("agent_messages_total", "Inbound messages processed", ""),
		modelCalls:     cfg.Metrics.Counter("agent_model_calls_total", "Model API calls made", ""),
		toolExecutions: cfg.Metrics.Counter("agent_tool_executions_total", "Tool executions", ""),
	}
}

// Run consumes inbound messages until the context is cancelled. A failed
// turn is logged and abandoned; the loop moves on to the next message.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("agent loop started")
	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				l.logger.Info("agent loop stopping")
				return
			}
			l.logger.Error("consume inbound failed", "error", err)
			continue
		}
		l.handle(ctx, msg)
	}
}

// handle runs one full turn for a message and publishes the reply. On
// provider failure the turn is abandoned without an outbound message.
func (l *Loop) handle(ctx context.Context, msg domain.InboundMessage) {
	l.messagesTotal.Inc()
	started := time.Now()
	l.logger.Info("processing message",
		"channel", msg.Channel,
		"chat", msg.ChatID,
		"sender", msg.SenderID,
		"content_len", len(msg.Content),
	)

	reply, err := l.processMessage(ctx, msg)
	if err != nil {
		l.logger.Error("turn abandoned", "chat", msg.ChatID, "error", err)
		return
	}

	l.bus.PublishOutbound(domain.OutboundMessage{
		Channel:     msg.Channel,
		ChatID:      msg.ChatID,
		RecipientID: msg.SenderID,
		Content:     reply,
	})
	l.logger.Debug("turn complete", "chat", msg.ChatID, "elapsed", time.Since(started))
}

func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) (string, error) {
	if msg.Command() == domain.CommandClear {
		l.sessions.Clear(msg.ChatID)
		return clearedReply, nil
	}

	l.sessions.Add(msg.ChatID, domain.Message{
		Role:    domain.RoleUser,
		Content: buildUserContent(msg),
	})

	messages := l.contextB.Build(msg.ChatID)
	toolDefs := l.tools.Definitions()

	var last *domain.ChatResponse
	for iteration := 0; iteration < l.maxIterations; iteration++ {
		l.logger.Debug("model call", "chat", msg.ChatID, "iteration", iteration+1, "messages", len(messages))

		l.modelCalls.Inc()
		resp, err := l.provider.Chat(ctx, domain.ChatRequest{
			Model:       l.model,
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}
		last = resp

		if !resp.HasToolCalls() {
			content := resp.Content
			if content == "" {
				content = emptyReplyFallback
			}
			l.sessions.Add(msg.ChatID, domain.Message{Role: domain.RoleAssistant, Content: content})
			return content, nil
		}

		assistant := domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistant)
		l.sessions.Add(msg.ChatID, assistant)

		for _, tc := range resp.ToolCalls {
			l.logger.Info("executing tool", "tool", tc.Name, "call_id", tc.ID)
			l.toolExecutions.Inc()
			result := l.tools.Execute(ctx, tc.Name, tc.Arguments)

			toolMsg := domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Content:    result,
			}
			messages = append(messages, toolMsg)
			l.sessions.Add(msg.ChatID, toolMsg)
		}
	}

	l.logger.Warn("tool iteration limit reached", "chat", msg.ChatID, "limit", l.maxIterations)
	fallback := budgetReplyFallback
	if last != nil && last.Content != "" {
		fallback = last.Content
	}
	l.sessions.Add(msg.ChatID, domain.Message{Role: domain.RoleAssistant, Content: fallback})
	return fallback, nil
}

// buildUserContent folds media attachments into the message text so the
// model knows the files exist and where they live.
func buildUserContent(msg domain.InboundMessage) string {
	content := msg.Content
	if len(msg.Media) == 0 {
		return content
	}
	mediaType := msg.Metadata[domain.MetaMediaType]
	if mediaType == "" {
		mediaType = "file"
	}
	tag := fmt.Sprintf("[User attached %s file(s) saved at: %s. You can read or analyze these files using your tools.]",
		mediaType, strings.Join(msg.Media, ", "))
	return strings.TrimSpace(content + "\n\n" + tag)
}
