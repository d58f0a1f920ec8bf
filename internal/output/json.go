package output

import (
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/HexSleeves/toolloop/internal/bus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONEvent is one line of JSON output.
type JSONEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id,omitempty"`
	Iteration int         `json:"iteration,omitempty"`
	Text      string      `json:"text,omitempty"`
	Tool      string      `json:"tool,omitempty"`
	Argument  string      `json:"argument,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// RunSummary is the payload of the final "run.end" event.
type RunSummary struct {
	Status     string `json:"status"`
	Answer     string `json:"answer,omitempty"`
	Error      string `json:"error,omitempty"`
	Iterations int    `json:"iterations"`
	DurationMS int64  `json:"duration_ms"`
}

// maxEventText caps the text of one event, in bytes.
const maxEventText = 10000

// JSONWriter serializes run events as JSON lines.
type JSONWriter struct {
	mu        sync.Mutex
	w         io.Writer
	startTime time.Time
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		w:         w,
		startTime: time.Now(),
	}
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... [truncated]"
}

// writeEvent writes a single JSON event as a line.
func (jw *JSONWriter) writeEvent(event JSONEvent) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Text = truncateText(event.Text, maxEventText)

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(jw.w, string(data))
	return err
}

// Handle writes one bus message. Use it with MessageBus.SubscribeAll.
func (jw *JSONWriter) Handle(msg bus.Message) {
	event := JSONEvent{
		Type:      string(msg.Type),
		Timestamp: msg.Time,
		RunID:     msg.RunID,
		Iteration: msg.Iteration,
	}
	switch p := msg.Payload.(type) {
	case bus.Text:
		event.Text = p.Text
	case bus.Action:
		event.Tool = p.Tool
		event.Argument = p.Argument
	case bus.RunStarted:
		event.Text = p.Prompt
		event.Data = map[string]interface{}{
			"provider":       p.Provider,
			"model":          p.Model,
			"max_iterations": p.MaxIterations,
		}
	case nil:
	default:
		event.Data = p
	}
	jw.writeEvent(event) //nolint:errcheck
}

// WriteRunEnd emits the final run summary.
func (jw *JSONWriter) WriteRunEnd(runID string, summary RunSummary) error {
	summary.DurationMS = time.Since(jw.startTime).Milliseconds()
	return jw.writeEvent(JSONEvent{
		Type:  "run.end",
		RunID: runID,
		Data:  summary,
	})
}

// WriteError emits an error event for a failure before any run started, such
// as a bad configuration or an unusable provider.
func (jw *JSONWriter) WriteError(message string) error {
	return jw.writeEvent(JSONEvent{Type: "error", Text: message})
}
