// Package output renders runs for people (pterm) and for programs (JSON lines).
package output

// Mode represents the output mode.
type Mode int

const (
	// ModePlain is styled, human-readable output.
	ModePlain Mode = iota
	// ModeJSON emits one JSON event per line on stdout.
	ModeJSON
	// ModeQuiet prints only the final answer.
	ModeQuiet
)

func (m Mode) String() string {
	switch m {
	case ModeJSON:
		return "json"
	case ModeQuiet:
		return "quiet"
	default:
		return "plain"
	}
}

// SelectMode resolves the CLI flags into a mode. JSON wins over quiet.
func SelectMode(jsonFlag, quietFlag bool) Mode {
	switch {
	case jsonFlag:
		return ModeJSON
	case quietFlag:
		return ModeQuiet
	default:
		return ModePlain
	}
}
