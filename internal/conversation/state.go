// Package conversation holds the append-only message history of a chat
// session and the per-session bookkeeping used in server mode.
package conversation

import (
	"sync"
	"time"

	"github.com/ashish13377/Intellido/internal/services/ai"
)

// Message is one entry of the history as sent to the completion endpoint
type Message = ai.ChatMessage

// State is the ordered message history of one conversation. Messages are
// only ever appended; readers get copies.
type State struct {
	mu           sync.RWMutex
	id           string
	messages     []Message
	createdAt    time.Time
	lastActivity time.Time
}

// NewState creates a history seeded with the system prompt
func NewState(id, systemPrompt string) *State {
	now := time.Now()
	return &State{
		id:           id,
		messages:     []Message{{Role: ai.RoleSystem, Content: systemPrompt}},
		createdAt:    now,
		lastActivity: now,
	}
}

// Restore rebuilds a history from an archived transcript
func Restore(id string, messages []Message) *State {
	now := time.Now()
	return &State{
		id:           id,
		messages:     append([]Message(nil), messages...),
		createdAt:    now,
		lastActivity: now,
	}
}

// ID returns the session id
func (s *State) ID() string {
	return s.id
}

// AppendUser appends a user message
func (s *State) AppendUser(content string) {
	s.append(ai.RoleUser, content)
}

// AppendAssistant appends a raw model reply
func (s *State) AppendAssistant(content string) {
	s.append(ai.RoleAssistant, content)
}

// AppendToolResult appends a tool observation
func (s *State) AppendToolResult(content string) {
	s.append(ai.RoleTool, content)
}

func (s *State) append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content})
	s.lastActivity = time.Now()
}

// Snapshot returns a copy of the full history
func (s *State) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Transcript returns the history without system messages
func (s *State) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Role != ai.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of messages
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastActivity returns when the history last grew
func (s *State) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}
