package transcript

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/HexSleeves/toolloop/internal/llm"
)

// Compactor shapes the view of a transcript that is sent to the model.
// It must not modify its input and must keep a leading system message first.
type Compactor interface {
	Compact(messages []llm.Message) ([]llm.Message, error)
}

// Summarizer condenses a run of messages into one block of text.
// It could call an LLM or use a simple heuristic.
type Summarizer func(messages []llm.Message) (string, error)

// WindowCompactor keeps the system message and the most recent messages,
// folding everything in between into a summary once the estimated token
// count passes Threshold × MaxTokens.
type WindowCompactor struct {
	MaxTokens  int
	Threshold  float64 // e.g. 0.75 = compact at 75% capacity
	Summarizer Summarizer
}

// NewWindowCompactor returns a compactor with the default threshold and
// the extractive DefaultSummarizer.
func NewWindowCompactor(maxTokens int) *WindowCompactor {
	return &WindowCompactor{
		MaxTokens:  maxTokens,
		Threshold:  0.75,
		Summarizer: DefaultSummarizer,
	}
}

// NeedsCompaction reports whether messages are approaching capacity.
func (w *WindowCompactor) NeedsCompaction(messages []llm.Message) bool {
	if w.MaxTokens <= 0 {
		return false
	}
	n := 0
	for _, m := range messages {
		n += EstimateTokens(m.Content)
	}
	return float64(n) > float64(w.MaxTokens)*w.Threshold
}

func (w *WindowCompactor) Compact(messages []llm.Message) ([]llm.Message, error) {
	if !w.NeedsCompaction(messages) {
		return messages, nil
	}

	var head []llm.Message
	body := messages
	if len(body) > 0 && body[0].Role == llm.RoleSystem {
		head, body = body[:1], body[1:]
	}
	if len(body) < 4 {
		return messages, nil
	}

	// Keep the last 25% of messages, compact the rest
	keepCount := len(body) / 4
	if keepCount < 2 {
		keepCount = 2
	}
	toCompact := body[:len(body)-keepCount]
	toKeep := body[len(body)-keepCount:]

	summarize := w.Summarizer
	if summarize == nil {
		summarize = DefaultSummarizer
	}
	summary, err := summarize(toCompact)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	out := make([]llm.Message, 0, len(head)+1+len(toKeep))
	out = append(out, head...)
	out = append(out, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("[Context Summary from previous turns]\n%s", summary),
	})
	out = append(out, toKeep...)
	return out, nil
}

// EstimateTokens gives a rough token count (~4 chars per token)
func EstimateTokens(s string) int {
	return len(s) / 4
}

// previewWidth bounds each message line of a summary, in terminal cells.
const previewWidth = 200

// DefaultSummarizer provides a simple extractive summary without calling an LLM
func DefaultSummarizer(messages []llm.Message) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d messages:\n", len(messages))

	for _, m := range messages {
		fmt.Fprintf(&b, "- [%s] %s\n", m.Role, runewidth.Truncate(m.Content, previewWidth, "..."))
	}
	return b.String(), nil
}
