package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.width
	if w < 40 {
		w = 80 // sensible default before WindowSizeMsg
	}

	header := m.renderHeader(w)
	body := panelBorder.Width(w - 2).Render(m.viewport.View())
	return header + "\n" + body + "\n" + m.renderStatusBar(w)
}

func (m Model) renderHeader(w int) string {
	title := titleStyle.Render("🐝 toolloop")
	if m.provider != "" {
		title += subtleStyle.Render(fmt.Sprintf("  %s / %s", m.provider, m.model))
	}
	if m.runID != "" {
		title += subtleStyle.Render("  run " + shortID(m.runID))
	}
	prompt := truncate("❯ "+m.prompt, w-2)
	return title + "\n" + thoughtStyle.Render(prompt)
}

func (m Model) renderLines(width int) string {
	var rendered []string
	for _, l := range m.lines {
		for _, wl := range wrapText(l.text, width) {
			switch l.style {
			case "turn":
				rendered = append(rendered, titleStyle.Render(wl))
			case "think":
				rendered = append(rendered, thoughtStyle.Render(wl))
			case "tool":
				rendered = append(rendered, toolCallStyle.Render(wl))
			case "observation":
				rendered = append(rendered, observationStyle.Render(wl))
			case "error":
				rendered = append(rendered, errorStyle.Render(wl))
			case "answer":
				rendered = append(rendered, successStyle.Render(wl))
			default:
				rendered = append(rendered, subtleStyle.Render(wl))
			}
		}
	}
	return strings.Join(rendered, "\n")
}

func (m Model) renderStatusBar(w int) string {
	var state string
	if m.done {
		state = statusIcon(m.status) + " " + m.status
	} else {
		state = m.spinner.View() + " running"
	}

	turn := fmt.Sprintf("turn %d/%d", m.turn, m.maxTurn)
	elapsed := m.elapsed.Truncate(time.Second).String()

	hint := "↑/↓ scroll · q quit"
	if m.done {
		hint = "any key to exit"
	}

	left := statusBar.Render(state + "  " + turn + "  " + elapsed)
	if m.turn >= m.maxTurn && !m.done && m.maxTurn > 0 {
		left += warnStyle.Render(" last turn")
	}
	right := subtleStyle.Render(hint)
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// wrapText wraps a string to fit within maxWidth display columns,
// correctly handling emoji and CJK characters.
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapLine(para, maxWidth)...)
	}
	return out
}

func wrapLine(text string, maxWidth int) []string {
	if runewidth.StringWidth(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	for runewidth.StringWidth(text) > maxWidth {
		// Find the byte offset that fits within maxWidth display columns
		colW := 0
		byteOff := 0
		for i, r := range text {
			rw := runewidth.RuneWidth(r)
			if colW+rw > maxWidth {
				break
			}
			colW += rw
			byteOff = i + len(string(r))
		}
		if byteOff == 0 {
			// Single character wider than maxWidth, force advance
			byteOff = len(string([]rune(text)[0]))
		}
		// Try to break on a space within the last third
		cut := byteOff
		if idx := strings.LastIndex(text[:byteOff], " "); idx > byteOff/3 {
			cut = idx
		}
		lines = append(lines, text[:cut])
		text = strings.TrimLeft(text[cut:], " ")
	}
	if text != "" {
		lines = append(lines, text)
	}
	return lines
}

// truncate shortens text to maxWidth display columns.
func truncate(text string, maxWidth int) string {
	if maxWidth <= 1 {
		return text
	}
	return runewidth.Truncate(text, maxWidth, "…")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
