package session

import "strings"

// Mode is the state of the page's single action button.
type Mode int

const (
	// ModeCompose accepts new input; the action sends.
	ModeCompose Mode = iota
	// ModeStreaming has a request in flight; the action asks the server to stop.
	ModeStreaming
)

func (m Mode) String() string {
	switch m {
	case ModeCompose:
		return "compose"
	case ModeStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ActionDisabled is the input gate: the action is disabled only when the text
// is blank and the page is composing. The cancel action is never disabled.
func ActionDisabled(text string, mode Mode) bool {
	return strings.TrimSpace(text) == "" && mode == ModeCompose
}
