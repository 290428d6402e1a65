package agent

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"merobot/internal/bus"
	"merobot/internal/domain"
	"merobot/internal/session"
	"merobot/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns canned responses in order and records requests.
type scriptedProvider struct {
	responses []*domain.ChatResponse
	requests  []domain.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.requests) > len(p.responses) {
		return p.responses[len(p.responses)-1], nil
	}
	return p.responses[len(p.requests)-1], nil
}

func (p *scriptedProvider) Name() string                    { return "scripted" }
func (p *scriptedProvider) Models() []string                { return []string{"test-model"} }
func (p *scriptedProvider) Healthy(_ context.Context) error { return nil }

type countingTool struct {
	calls int
}

func (c *countingTool) Name() string        { return "probe" }
func (c *countingTool) Description() string { return "test probe" }
func (c *countingTool) Parameters() map[string]any {
	return tool.ToolParameters(nil, nil)
}
func (c *countingTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	c.calls++
	return "probe result", nil
}

type loopFixture struct {
	loop     *Loop
	provider *scriptedProvider
	sessions *session.Store
	bus      *bus.InMemoryBus
	probe    *countingTool
	outbound chan domain.OutboundMessage
}

func newLoopFixture(t *testing.T, responses ...*domain.ChatResponse) *loopFixture {
	t.Helper()
	logger := testLogger()
	provider := &scriptedProvider{responses: responses}
	sessions := session.New(50, logger)
	registry := tool.NewRegistry(logger)
	probe := &countingTool{}
	if err := registry.Register(probe); err != nil {
		t.Fatal(err)
	}
	b := bus.New(10, logger)

	outbound := make(chan domain.OutboundMessage, 10)
	b.SubscribeOutbound("test", func(msg domain.OutboundMessage) error {
		outbound <- msg
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.DispatchOutbound(ctx)

	loop := NewLoop(LoopConfig{
		Provider: provider,
		Sessions: sessions,
		Context:  NewContextBuilder(sessions, "", nil),
		Tools:    registry,
		Bus:      b,
		Logger:   logger,
		Model:    "test-model",
	})
	return &loopFixture{loop: loop, provider: provider, sessions: sessions, bus: b, probe: probe, outbound: outbound}
}

func inboundText(content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "m1",
		Channel:   "test",
		ChatID:    "chat-1",
		SenderID:  "alice",
		Content:   content,
		Timestamp: time.Now(),
	}
}

func (f *loopFixture) takeOutbound(t *testing.T) domain.OutboundMessage {
	t.Helper()
	select {
	case out := <-f.outbound:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message dispatched")
		return domain.OutboundMessage{}
	}
}

func TestLoop_PlainReply(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: "hello there"})

	f.loop.handle(context.Background(), inboundText("hi"))

	out := f.takeOutbound(t)
	if out.Content != "hello there" {
		t.Fatalf("got reply %q", out.Content)
	}
	if out.Channel != "test" || out.ChatID != "chat-1" || out.RecipientID != "alice" {
		t.Fatalf("outbound misaddressed: %+v", out)
	}
	if len(f.provider.requests) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(f.provider.requests))
	}

	history := f.sessions.History("chat-1")
	if len(history) != 2 || history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected session history: %+v", history)
	}
}

func TestLoop_SystemPromptLeadsContext(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: "ok"})

	f.loop.handle(context.Background(), inboundText("hi"))
	f.takeOutbound(t)

	msgs := f.provider.requests[0].Messages
	if msgs[0].Role != domain.RoleSystem {
		t.Fatalf("first context message should be system, got %s", msgs[0].Role)
	}
	if msgs[len(msgs)-1].Role != domain.RoleUser || msgs[len(msgs)-1].Content != "hi" {
		t.Fatalf("last context message should be the user turn, got %+v", msgs[len(msgs)-1])
	}
}

func TestLoop_ToolRoundTrip(t *testing.T) {
	f := newLoopFixture(t,
		&domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: "c1", Name: "probe", Arguments: map[string]any{}}}},
		&domain.ChatResponse{Content: "done with tool"},
	)

	f.loop.handle(context.Background(), inboundText("use the probe"))

	out := f.takeOutbound(t)
	if out.Content != "done with tool" {
		t.Fatalf("got reply %q", out.Content)
	}
	if len(f.provider.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(f.provider.requests))
	}
	if f.probe.calls != 1 {
		t.Fatalf("tool ran %d times", f.probe.calls)
	}

	// Session must hold user, assistant tool-call, tool result, final
	// assistant, in that order.
	history := f.sessions.History("chat-1")
	roles := make([]string, len(history))
	for i, m := range history {
		roles[i] = m.Role
	}
	want := []string{domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("history roles %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("history roles %v, want %v", roles, want)
		}
	}
	if history[2].Content != "probe result" || history[2].ToolCallID != "c1" {
		t.Fatalf("tool turn malformed: %+v", history[2])
	}

	// The second model call must include the tool result.
	secondCall := f.provider.requests[1].Messages
	lastMsg := secondCall[len(secondCall)-1]
	if lastMsg.Role != domain.RoleTool || lastMsg.Content != "probe result" {
		t.Fatalf("second call missing tool result: %+v", lastMsg)
	}
}

func TestLoop_IterationBudgetExhausted(t *testing.T) {
	call := &domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: "c1", Name: "probe", Arguments: map[string]any{}}}}
	responses := make([]*domain.ChatResponse, 0, defaultMaxIterations)
	for i := 0; i < defaultMaxIterations; i++ {
		responses = append(responses, call)
	}
	f := newLoopFixture(t, responses...)

	f.loop.handle(context.Background(), inboundText("loop forever"))

	out := f.takeOutbound(t)
	if out.Content != budgetReplyFallback {
		t.Fatalf("expected budget fallback, got %q", out.Content)
	}
	if len(f.provider.requests) != defaultMaxIterations {
		t.Fatalf("expected exactly %d model calls, got %d", defaultMaxIterations, len(f.provider.requests))
	}
}

func TestLoop_ClearCommand(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: "should not be called"})
	f.sessions.Add("chat-1", domain.Message{Role: domain.RoleUser, Content: "old"})

	msg := inboundText("/clear")
	msg.Metadata = map[string]string{domain.MetaCommand: domain.CommandClear}
	f.loop.handle(context.Background(), msg)

	out := f.takeOutbound(t)
	if out.Content != clearedReply {
		t.Fatalf("expected clear acknowledgement, got %q", out.Content)
	}
	if len(f.provider.requests) != 0 {
		t.Fatalf("clear must not call the model, got %d calls", len(f.provider.requests))
	}
	if len(f.sessions.History("chat-1")) != 0 {
		t.Fatal("session not cleared")
	}
}

func TestLoop_EmptyContentFallback(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: ""})

	f.loop.handle(context.Background(), inboundText("hi"))

	out := f.takeOutbound(t)
	if out.Content != emptyReplyFallback {
		t.Fatalf("expected empty-content fallback, got %q", out.Content)
	}
}

func TestLoop_ProviderErrorAbandonsTurn(t *testing.T) {
	f := newLoopFixture(t) // no scripted responses
	f.provider.responses = nil
	failing := &failingProvider{}
	f.loop.provider = failing

	f.loop.handle(context.Background(), inboundText("hi"))

	select {
	case out := <-f.outbound:
		t.Fatalf("expected no outbound after provider error, got %+v", out)
	case <-time.After(100 * time.Millisecond):
	}
}

type failingProvider struct{}

func (p *failingProvider) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	return nil, context.DeadlineExceeded
}
func (p *failingProvider) Name() string                    { return "failing" }
func (p *failingProvider) Models() []string                { return nil }
func (p *failingProvider) Healthy(_ context.Context) error { return nil }

func TestLoop_MediaTagAppended(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: "ok"})

	msg := inboundText("look at this")
	msg.Media = []string{"/tmp/photo.jpg"}
	msg.Metadata = map[string]string{domain.MetaMediaType: "photo"}
	f.loop.handle(context.Background(), msg)
	f.takeOutbound(t)

	history := f.sessions.History("chat-1")
	userTurn := history[0].Content
	if !strings.Contains(userTurn, "look at this") ||
		!strings.Contains(userTurn, "photo") ||
		!strings.Contains(userTurn, "/tmp/photo.jpg") {
		t.Fatalf("media tag missing from user turn: %q", userTurn)
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	f := newLoopFixture(t, &domain.ChatResponse{Content: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
