package agent

import (
	"strings"
	"testing"

	"merobot/internal/domain"
	"merobot/internal/session"
)

func TestContextBuilder_SystemFirst(t *testing.T) {
	sessions := session.New(50, testLogger())
	sessions.Add("c1", domain.Message{Role: domain.RoleUser, Content: "hello"})
	b := NewContextBuilder(sessions, "", nil)

	msgs := b.Build("c1")
	if len(msgs) != 2 {
		t.Fatalf("expected system + history, got %d messages", len(msgs))
	}
	if msgs[0].Role != domain.RoleSystem || msgs[0].Content == "" {
		t.Fatalf("first message should be the system prompt, got %+v", msgs[0])
	}
	if msgs[1].Content != "hello" {
		t.Fatalf("history missing: %+v", msgs[1])
	}
}

func TestContextBuilder_CustomPrompt(t *testing.T) {
	sessions := session.New(50, testLogger())
	b := NewContextBuilder(sessions, "custom instructions", nil)

	msgs := b.Build("c1")
	if msgs[0].Content != "custom instructions" {
		t.Fatalf("custom prompt not used: %q", msgs[0].Content)
	}
}

func TestContextBuilder_PersonasAppended(t *testing.T) {
	sessions := session.New(50, testLogger())
	b := NewContextBuilder(sessions, "base", []string{"persona one", "persona two"})

	prompt := b.SystemPrompt()
	if !strings.HasPrefix(prompt, "base") {
		t.Fatalf("base prompt not first: %q", prompt)
	}
	for _, p := range []string{"persona one", "persona two"} {
		if !strings.Contains(prompt, p) {
			t.Fatalf("persona %q missing from system prompt", p)
		}
	}
	if strings.Index(prompt, "persona one") > strings.Index(prompt, "persona two") {
		t.Fatal("personas out of order")
	}
}

func TestContextBuilder_EmptyHistory(t *testing.T) {
	sessions := session.New(50, testLogger())
	b := NewContextBuilder(sessions, "", nil)

	msgs := b.Build("never-seen")
	if len(msgs) != 1 || msgs[0].Role != domain.RoleSystem {
		t.Fatalf("expected just the system message, got %+v", msgs)
	}
}
