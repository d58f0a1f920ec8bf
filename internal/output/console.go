package output

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/HexSleeves/toolloop/internal/bus"
)

// Handle renders one run event. It is meant to be attached to the bus with
// SubscribeAll while a run is in progress.
func (p *Printer) Handle(msg bus.Message) {
	if !p.active() {
		return
	}
	switch msg.Type {
	case bus.MsgRunStarted:
		if s, ok := msg.Payload.(bus.RunStarted); ok {
			p.KeyValue([][]string{
				{"Run", msg.RunID},
				{"Provider", s.Provider},
				{"Model", s.Model},
				{"Budget", fmt.Sprintf("%d iterations", s.MaxIterations)},
			})
			p.Divider()
		}
	case bus.MsgTurnReply:
		p.Section(fmt.Sprintf("Turn %d", msg.Iteration))
		p.Debug("%s", payloadText(msg))
		if thought := thoughtOf(payloadText(msg)); thought != "" {
			fmt.Fprintf(p.writer, "  %s %s\n", pterm.Magenta("💭"), thought)
		}
	case bus.MsgTurnAction:
		if a, ok := msg.Payload.(bus.Action); ok {
			fmt.Fprintf(p.writer, "  %s %s(%s)\n", pterm.Cyan("🔧"), a.Tool, a.Argument)
		}
	case bus.MsgTurnObservation:
		fmt.Fprintf(p.writer, "  %s %s\n", pterm.Green("👁"), payloadText(msg))
	case bus.MsgRunTimeout:
		p.Warning("No answer after %d iterations", msg.Iteration)
	case bus.MsgRunFailed:
		p.Error("%s", payloadText(msg))
	}
}

// Transcript prints a stored conversation, one block per message.
func (p *Printer) Transcript(roles, contents []string) {
	if !p.active() {
		return
	}
	for i := range roles {
		var label string
		switch roles[i] {
		case "system":
			label = pterm.Gray("system")
		case "assistant":
			label = pterm.LightMagenta("assistant")
		default:
			label = pterm.LightCyan(roles[i])
		}
		fmt.Fprintf(p.writer, "%s\n%s\n\n", label, indent(contents[i]))
	}
}

func payloadText(msg bus.Message) string {
	switch v := msg.Payload.(type) {
	case bus.Text:
		return v.Text
	case string:
		return v
	}
	return ""
}

// thoughtOf extracts the THOUGHT part of an action reply.
func thoughtOf(raw string) string {
	first, _, _ := strings.Cut(raw, "|")
	first = strings.TrimSpace(first)
	if rest, ok := strings.CutPrefix(first, "THOUGHT:"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
