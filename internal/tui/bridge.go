package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HexSleeves/toolloop/internal/bus"
)

// Program wraps a Bubble Tea program watching a single run.
type Program struct {
	program *tea.Program
}

// NewProgram creates a TUI program. interrupt is called when the user quits
// before the run has finished.
func NewProgram(prompt string, maxTurns int, interrupt func(), opts ...tea.ProgramOption) *Program {
	model := New(prompt, maxTurns)
	model.interrupt = interrupt
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Program{program: tea.NewProgram(model, opts...)}
}

// Run starts the TUI (blocking).
func (p *Program) Run() (tea.Model, error) {
	return p.program.Run()
}

// Send sends a message to the TUI.
func (p *Program) Send(msg tea.Msg) {
	p.program.Send(msg)
}

// Attach forwards run events published on b to the TUI.
func (p *Program) Attach(b *bus.MessageBus) {
	b.SubscribeAll(func(msg bus.Message) {
		if m := Translate(msg); m != nil {
			p.program.Send(m)
		}
	})
}

// Translate maps a bus message to the TUI message it drives, or nil.
func Translate(msg bus.Message) tea.Msg {
	switch msg.Type {
	case bus.MsgRunStarted:
		if s, ok := msg.Payload.(bus.RunStarted); ok {
			return StartMsg{RunID: msg.RunID, Provider: s.Provider, Model: s.Model, MaxTurn: s.MaxIterations}
		}
	case bus.MsgTurnReply:
		return ReplyMsg{Turn: msg.Iteration, Text: text(msg)}
	case bus.MsgTurnAction:
		if a, ok := msg.Payload.(bus.Action); ok {
			return ToolCallMsg{Name: a.Tool, Input: a.Argument}
		}
	case bus.MsgTurnObservation:
		return ObservationMsg{Text: text(msg)}
	case bus.MsgRunAnswer:
		return DoneMsg{Status: "answered", Answer: text(msg)}
	case bus.MsgRunTimeout:
		return DoneMsg{Status: "timeout", Error: "no answer within the iteration budget"}
	case bus.MsgRunFailed:
		return DoneMsg{Status: "failed", Error: text(msg)}
	}
	return nil
}

func text(msg bus.Message) string {
	switch v := msg.Payload.(type) {
	case bus.Text:
		return v.Text
	case string:
		return v
	}
	return ""
}
