// Package tui is a full-screen live view of one agent run, fed by the run's
// events on the message bus.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxLines     = 500
	tickInterval = time.Second
)

type line struct {
	text  string
	style string // "turn", "think", "tool", "observation", "error", "answer", "info"
}

// Model is the Bubble Tea model of the run view.
type Model struct {
	// Content
	prompt   string
	runID    string
	provider string
	model    string
	lines    []line

	// State
	turn      int
	maxTurn   int
	startTime time.Time
	elapsed   time.Duration
	done      bool
	status    string
	answer    string
	errMsg    string

	// UI state
	width     int
	height    int
	spinner   spinner.Model
	viewport  viewport.Model
	interrupt func()
	quitting  bool
}

// New creates a run view for prompt with the given iteration budget.
func New(prompt string, maxTurns int) Model {
	return Model{
		prompt:    prompt,
		maxTurn:   maxTurns,
		startTime: time.Now(),
		status:    "running",
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle)),
		viewport:  viewport.New(76, 19),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick, tea.WindowSize())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Done reports whether the run finished, and its status.
func (m Model) Done() (bool, string) {
	return m.done, m.status
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.interrupt != nil {
				m.interrupt()
			}
			m.quitting = true
			return m, tea.Quit
		case "up", "down", "k", "j", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		default:
			// Any other key quits after done
			if m.done {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-5, 3)
		m.refresh()

	case TickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.startTime)
		return m, tickCmd()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StartMsg:
		m.runID = msg.RunID
		m.provider = msg.Provider
		m.model = msg.Model
		m.maxTurn = msg.MaxTurn

	case ReplyMsg:
		m.turn = msg.Turn
		if len(m.lines) > 0 {
			m.addLine("", "info")
		}
		m.addLine(fmt.Sprintf("Turn %d/%d", msg.Turn, m.maxTurn), "turn")
		m.addLine(thoughtOf(msg.Text), "think")

	case ToolCallMsg:
		m.addLine(fmt.Sprintf("→ %s(%s)", msg.Name, msg.Input), "tool")

	case ObservationMsg:
		style := "observation"
		if strings.Contains(msg.Text, "Error:") {
			style = "error"
		}
		m.addLine("  "+msg.Text, style)

	case DoneMsg:
		m.done = true
		m.status = msg.Status
		m.answer = msg.Answer
		m.errMsg = msg.Error
		m.elapsed = time.Since(m.startTime)
		m.addLine("", "info")
		if msg.Status == "answered" {
			m.addLine("✅ "+msg.Answer, "answer")
		} else {
			m.addLine(statusIcon(msg.Status)+" "+msg.Error, "error")
		}
		m.addLine("Press any key to exit...", "info")
	}

	return m, nil
}

func (m *Model) addLine(text, style string) {
	m.lines = append(m.lines, line{text: text, style: style})
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

// refresh re-renders the transcript into the viewport, following the tail
// unless the user scrolled up.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderLines(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

// thoughtOf extracts the THOUGHT part of a reply, or returns the reply.
func thoughtOf(raw string) string {
	first, _, _ := strings.Cut(raw, "|")
	first = strings.TrimSpace(first)
	if rest, ok := strings.CutPrefix(first, "THOUGHT:"); ok {
		return "💭 " + strings.TrimSpace(rest)
	}
	return strings.TrimSpace(raw)
}
