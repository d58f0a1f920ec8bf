// Package reply parses model replies written in the loop's line grammar:
//
//	THOUGHT: <reasoning>|ACTION|<tool>|<argument>
//	ANSWER|<final text>
//
// The pipe is the only delimiter and cannot be escaped, so an argument that
// itself contains a pipe is cut at the first one.
package reply

import (
	"fmt"
	"strings"

	"github.com/HexSleeves/toolloop/internal/errors"
)

const (
	ActionMarker      = "ACTION"
	AnswerMarker      = "ANSWER"
	ObservationPrefix = "OBSERVATION: "
	delimiter         = "|"
)

// Kind classifies a reply.
type Kind int

const (
	Unrecognized Kind = iota
	Action
	Answer
)

func (k Kind) String() string {
	switch k {
	case Action:
		return "action"
	case Answer:
		return "answer"
	default:
		return "unrecognized"
	}
}

// Parsed is the interpretation of one reply. Tool and Argument are set for
// Action, Text for Answer. Raw always holds the original reply.
type Parsed struct {
	Kind     Kind
	Tool     string
	Argument string
	Text     string
	Raw      string
}

// Parse classifies raw. An ACTION marker wins over an ANSWER marker; a reply
// with the ACTION marker but fewer than four pipe-separated fields returns a
// *errors.ParseError.
func Parse(raw string) (Parsed, error) {
	if strings.Contains(raw, ActionMarker) {
		fields := strings.Split(raw, delimiter)
		if len(fields) < 4 {
			return Parsed{Kind: Unrecognized, Raw: raw}, &errors.ParseError{
				Raw:    raw,
				Reason: fmt.Sprintf("expected THOUGHT|ACTION|tool|argument, got %d field(s)", len(fields)),
			}
		}
		return Parsed{
			Kind:     Action,
			Tool:     strings.TrimSpace(fields[2]),
			Argument: strings.TrimSpace(fields[3]),
			Raw:      raw,
		}, nil
	}

	if i := strings.Index(raw, AnswerMarker); i >= 0 {
		return Parsed{Kind: Answer, Text: answerText(raw[i+len(AnswerMarker):]), Raw: raw}, nil
	}

	return Parsed{Kind: Unrecognized, Raw: raw}, nil
}

func answerText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "|") || strings.HasPrefix(s, ":") {
		s = strings.TrimSpace(s[1:])
	}
	return s
}

// Observation renders a tool result as the next user message.
func Observation(text string) string {
	return ObservationPrefix + text
}
