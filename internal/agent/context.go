package agent

import (
	"strings"

	"merobot/internal/domain"
	"merobot/internal/session"
)

const defaultSystemPrompt = `You are MeroBot, a capable and friendly personal AI assistant.

Core traits:
- You are helpful, concise, and honest.
- You use the tools available to you when they can help answer a question.
- When you don't know something and have no tool to check, say so.
- You keep responses focused and avoid unnecessary filler.
- You can handle multi-step tasks by using tools iteratively.
- There might be some tasks you don't have direct tools for but that are solvable by creatively combining available tools and information. Always try to find a way.

Always think step-by-step before answering complex questions.`

// ContextBuilder assembles the message list for a model call: the system
// prompt first, then the conversation history.
type ContextBuilder struct {
	sessions     *session.Store
	systemPrompt string
}

// NewContextBuilder creates a builder. An empty systemPrompt selects the
// default assistant prompt. Persona snippets are appended to the system
// prompt, separated by blank lines.
func NewContextBuilder(sessions *session.Store, systemPrompt string, personas []string) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	parts := append([]string{systemPrompt}, personas...)
	return &ContextBuilder{
		sessions:     sessions,
		systemPrompt: strings.Join(parts, "\n\n"),
	}
}

// Build returns [system] + history for the given chat.
func (b *ContextBuilder) Build(chatID string) []domain.Message {
	history := b.sessions.History(chatID)
	messages := make([]domain.Message, 0, 1+len(history))
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: b.systemPrompt})
	messages = append(messages, history...)
	return messages
}

// SystemPrompt returns the composed system prompt, personas included.
func (b *ContextBuilder) SystemPrompt() string {
	return b.systemPrompt
}
