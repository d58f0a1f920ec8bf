package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/HexSleeves/toolloop/internal/llm"
)

// scriptedClient replays canned replies in order and records every
// transcript it was sent.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error // call index (0-based) → error
	repeat  bool          // keep returning the last reply when exhausted
	calls   int
	seen    [][]llm.Message
	models  []string
}

func newScriptedClient(replies ...string) *scriptedClient {
	return &scriptedClient{replies: replies, errs: map[int]error{}}
}

func (s *scriptedClient) Provider() string { return "scripted" }

func (s *scriptedClient) Model() string { return "scripted-model" }

func (s *scriptedClient) Complete(ctx context.Context, messages []llm.Message, model string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	s.seen = append(s.seen, cp)
	s.models = append(s.models, model)

	if err, ok := s.errs[idx]; ok {
		return "", err
	}
	if idx < len(s.replies) {
		return s.replies[idx], nil
	}
	if s.repeat && len(s.replies) > 0 {
		return s.replies[len(s.replies)-1], nil
	}
	return "", fmt.Errorf("script exhausted after %d replies", len(s.replies))
}
