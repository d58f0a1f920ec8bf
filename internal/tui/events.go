package tui

// TUI event types, translated from run events on the bus and delivered
// through tea.Program.Send.

// StartMsg opens a run.
type StartMsg struct {
	RunID    string
	Provider string
	Model    string
	MaxTurn  int
}

// ReplyMsg is the raw model reply of a turn.
type ReplyMsg struct {
	Turn int
	Text string
}

// ToolCallMsg is when the model invokes a tool.
type ToolCallMsg struct {
	Name  string
	Input string
}

// ObservationMsg is the text fed back to the model.
type ObservationMsg struct {
	Text string
}

// DoneMsg indicates the run is complete. Status is one of "answered",
// "timeout" or "failed".
type DoneMsg struct {
	Status string
	Answer string
	Error  string
}

// TickMsg is a periodic timer for updating the elapsed time.
type TickMsg struct{}
