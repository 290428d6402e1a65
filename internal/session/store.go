// Package session keeps per-conversation message history in memory.
//
// Each conversation is an append-only, insertion-ordered slice of
// domain.Message. Trimming caps the number of non-system entries; system
// entries are retained unconditionally and hoisted to the front of the
// reassembled history.
package session

import (
	"log/slog"
	"sync"

	"merobot/internal/domain"
)

const defaultMaxHistory = 50

// Store manages per-chat conversation history.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string][]domain.Message
	maxHistory int
	logger     *slog.Logger
}

// New creates a Store keeping at most maxHistory non-system messages per
// chat. System messages are never trimmed.
func New(maxHistory int, logger *slog.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string][]domain.Message),
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// History returns a copy of the message history for a chat. Mutating the
// returned slice does not affect the store.
func (s *Store) History(chatID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[chatID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Add appends a message to the chat history and applies trimming. The
// session is created implicitly on first use.
func (s *Store) Add(chatID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chatID] = append(s.sessions[chatID], msg)
	s.trim(chatID)

	s.logger.Debug("session message added",
		"chat", chatID,
		"role", msg.Role,
		"total", len(s.sessions[chatID]),
	)
}

// Clear removes the conversation entirely, not just its contents.
func (s *Store) Clear(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	s.logger.Debug("session cleared", "chat", chatID)
}

// ActiveSessions returns the number of chats with stored history.
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// trim keeps all system messages plus the last maxHistory non-system
// messages, reassembled as system entries first. Callers hold s.mu.
func (s *Store) trim(chatID string) {
	msgs := s.sessions[chatID]

	var system, conversation []domain.Message
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			system = append(system, m)
		} else {
			conversation = append(conversation, m)
		}
	}

	if len(conversation) <= s.maxHistory && len(system) == 0 {
		return
	}

	if len(conversation) > s.maxHistory {
		dropped := len(conversation) - s.maxHistory
		conversation = conversation[dropped:]
		s.logger.Debug("session trimmed", "chat", chatID, "dropped", dropped)
	}

	s.sessions[chatID] = append(system, conversation...)
}
