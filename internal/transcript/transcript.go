// Package transcript holds the ordered message history of one agent run.
package transcript

import (
	"fmt"
	"sync"

	"github.com/HexSleeves/toolloop/internal/llm"
)

// Transcript is an append-only list of messages. An optional system message
// is always first; nothing is removed or rewritten once appended.
type Transcript struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// New starts a transcript. An empty system prompt means no system message.
func New(systemPrompt string) *Transcript {
	t := &Transcript{messages: make([]llm.Message, 0, 32)}
	if systemPrompt != "" {
		t.messages = append(t.messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	return t
}

// Append adds a user or assistant message.
func (t *Transcript) Append(role llm.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if role == llm.RoleSystem {
		return fmt.Errorf("system message must be the first message")
	}
	t.mu.Lock()
	t.messages = append(t.messages, llm.Message{Role: role, Content: content})
	t.mu.Unlock()
	return nil
}

// User appends a user message.
func (t *Transcript) User(content string) {
	t.Append(llm.RoleUser, content) //nolint:errcheck
}

// Assistant appends an assistant message.
func (t *Transcript) Assistant(content string) {
	t.Append(llm.RoleAssistant, content) //nolint:errcheck
}

// Messages returns a copy of the history.
func (t *Transcript) Messages() []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]llm.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages, system message included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// TokenCount estimates the size of the whole history.
func (t *Transcript) TokenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.messages {
		n += EstimateTokens(m.Content)
	}
	return n
}
