package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/rs/zerolog/log"
)

// EventMsg carries a server event into the bubbletea loop.
type EventMsg session.Event

// EnterChatMsg asks the model to load the chat history once connected.
type EnterChatMsg struct{}

// ForwardFunc is the event bus handler that injects server events into the
// program `p`, so the session handles them on the UI goroutine.
func ForwardFunc(p *tea.Program) func(ev session.Event) error {
	return func(ev session.Event) error {
		log.Debug().Str("component", "ui").Str("event", ev.Name).Msg("dispatching event to UI")
		p.Send(EventMsg(ev))
		return nil
	}
}
