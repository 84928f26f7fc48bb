package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/rs/zerolog/log"
)

// chrome is the number of lines around the output viewport: header, status,
// help and the bordered input.
const chrome = 3 + 5

// Model is the bubbletea program for one page. The session drives the page
// through the shared *Page; Model only routes keys and events to it.
type Model struct {
	page     *Page
	sess     *session.Session
	kind     session.Kind
	viewport viewport.Model
	spinner  spinner.Model
	width    int
}

func NewModel(page *Page, sess *session.Session, kind session.Kind) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	m := Model{
		page:     page,
		sess:     sess,
		kind:     kind,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
	}
	m.refresh(true)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh(false)
		return m, nil

	case EventMsg:
		m.sess.HandleEvent(session.Event(msg))
		m.refresh(true)
		return m, nil

	case EnterChatMsg:
		if err := m.sess.EnterChat(); err != nil {
			log.Warn().Str("component", "ui").Err(err).Msg("could not load chat history")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.page.InProgress() {
			m.refresh(false)
		}
		return m, cmd

	case tea.KeyMsg:
		m.page.DismissNotice()
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if _, err := m.sess.KeyEnter(false); err != nil {
				log.Debug().Str("component", "ui").Err(err).Msg("submit rejected")
			}
			m.refresh(true)
			return m, nil
		case "alt+enter":
			m.page.input.InsertString("\n")
			m.sess.InputChanged(m.page.InputText())
			return m, nil
		case "ctrl+s":
			m.activate()
			return m, nil
		case "esc":
			if m.sess.Mode() == session.ModeStreaming {
				m.activate()
			}
			return m, nil
		case "ctrl+l":
			if err := m.sess.ClearOutput(); err != nil {
				log.Warn().Str("component", "ui").Err(err).Msg("clear output failed")
			}
			m.refresh(true)
			return m, nil
		case "ctrl+r":
			if err := m.sess.ResetHistory(); err != nil {
				log.Warn().Str("component", "ui").Err(err).Msg("reset history failed")
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.page.input, cmd = m.page.input.Update(msg)
	m.sess.InputChanged(m.page.InputText())
	return m, cmd
}

func (m *Model) activate() {
	if err := m.sess.Activate(); err != nil {
		log.Debug().Str("component", "ui").Err(err).Msg("action rejected")
	}
	m.refresh(true)
}

func (m *Model) resize(width, height int) {
	m.width = width
	h := height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = width
	m.viewport.Height = h
	m.page.input.SetWidth(width - 4)
}

func (m *Model) refresh(bottom bool) {
	m.viewport.SetContent(m.page.RenderOutput(m.spinner.View()))
	if bottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	title := m.page.Title()
	if title == "" {
		title = "docchat: " + m.kind.String()
	}

	var status string
	switch {
	case m.page.Notice() != "":
		status = noticeStyle.Render(m.page.Notice())
	case m.page.ActionMode() == session.ModeStreaming:
		status = statusStyle.Render("streaming " + m.spinner.View() + "  esc to stop")
	default:
		status = statusStyle.Render("ready")
	}

	input := inputStyle
	if m.page.ActionDisabled() {
		input = inputDisabledStyle
	}

	help := "enter send • alt+enter newline • ctrl+s send/stop • ctrl+l clear"
	if m.kind == session.KindChat {
		help += " • ctrl+r reset history"
	}
	help += " • ctrl+c quit"

	return strings.Join([]string{
		titleStyle.Render(title),
		m.viewport.View(),
		status,
		input.Width(m.width - 2).Render(m.page.input.View()),
		helpStyle.Render(help),
	}, "\n")
}
