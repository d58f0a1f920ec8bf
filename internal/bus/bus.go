// Package bus is an in-process publish/subscribe channel for run events.
package bus

import (
	"sync"
	"time"
)

type MsgType string

const (
	MsgRunStarted      MsgType = "run.started"
	MsgTurnReply       MsgType = "turn.reply"
	MsgTurnAction      MsgType = "turn.action"
	MsgTurnObservation MsgType = "turn.observation"
	MsgRunAnswer       MsgType = "run.answer"
	MsgRunTimeout      MsgType = "run.timeout"
	MsgRunFailed       MsgType = "run.failed"
)

// Terminal reports whether t ends a run.
func (t MsgType) Terminal() bool {
	switch t {
	case MsgRunAnswer, MsgRunTimeout, MsgRunFailed:
		return true
	}
	return false
}

type Message struct {
	Type      MsgType     `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Iteration int         `json:"iteration,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Time      time.Time   `json:"time"`
}

// RunStarted is the payload of MsgRunStarted.
type RunStarted struct {
	Prompt        string `json:"prompt"`
	SystemPrompt  string `json:"system_prompt"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	MaxIterations int    `json:"max_iterations"`
}

// Action is the payload of MsgTurnAction.
type Action struct {
	Tool     string `json:"tool"`
	Argument string `json:"argument"`
}

// Text is the payload of MsgTurnReply, MsgTurnObservation, MsgRunAnswer,
// MsgRunTimeout and MsgRunFailed.
type Text struct {
	Text string `json:"text"`
}

type Handler func(msg Message)

// MessageBus fans run events out to subscribers. It keeps no history;
// subscribe before the run starts.
type MessageBus struct {
	mu       sync.RWMutex
	handlers map[MsgType][]Handler
}

func New() *MessageBus {
	return &MessageBus{
		handlers: make(map[MsgType][]Handler),
	}
}

func (b *MessageBus) Subscribe(msgType MsgType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = append(b.handlers[msgType], h)
}

func (b *MessageBus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers["*"] = append(b.handlers["*"], h)
}

// Publish delivers msg synchronously to type-specific handlers, then to
// wildcard handlers. A zero Time is stamped with the current time.
func (b *MessageBus) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	// Copy handlers under lock
	b.mu.RLock()
	specific := make([]Handler, len(b.handlers[msg.Type]))
	copy(specific, b.handlers[msg.Type])
	wildcard := make([]Handler, len(b.handlers["*"]))
	copy(wildcard, b.handlers["*"])
	b.mu.RUnlock()

	for _, h := range specific {
		h(msg)
	}
	for _, h := range wildcard {
		h(msg)
	}
}
