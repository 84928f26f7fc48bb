package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/pkg/errors"
)

type entryKind int

const (
	entryContainer entryKind = iota
	entryMessage
)

type entry struct {
	kind     entryKind
	id       string
	view     session.ContainerView
	followUp bool
	msg      session.Message
}

// Page is the terminal version of the document chat page: an input, an
// action state and an output area of containers and messages. It is the
// session's Surface and is only touched from the bubbletea goroutine.
type Page struct {
	input textarea.Model

	title          string
	notice         string
	actionDisabled bool
	mode           session.Mode

	entries []*entry
	byID    map[string]*entry
}

var _ session.Surface = &Page{}

func NewPage(title string) *Page {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.Focus()
	return &Page{
		input: ta,
		title: title,
		byID:  map[string]*entry{},
	}
}

func (p *Page) InputText() string {
	return p.input.Value()
}

// SetInput replaces the input text.
func (p *Page) SetInput(text string) {
	p.input.SetValue(text)
}

func (p *Page) ClearInput() {
	p.input.Reset()
}

func (p *Page) SetActionDisabled(disabled bool) {
	p.actionDisabled = disabled
}

func (p *Page) ActionDisabled() bool {
	return p.actionDisabled
}

func (p *Page) SetActionMode(mode session.Mode) {
	p.mode = mode
}

func (p *Page) ActionMode() session.Mode {
	return p.mode
}

func (p *Page) SetTitle(title string) {
	p.title = title
}

func (p *Page) Title() string {
	return p.title
}

func (p *Page) CreateContainer(id, title string) error {
	if _, ok := p.byID[id]; ok {
		return errors.Errorf("container %s already exists", id)
	}
	e := &entry{kind: entryContainer, id: id, view: session.ContainerView{Title: title, InProgress: true}}
	p.entries = append(p.entries, e)
	p.byID[id] = e
	return nil
}

func (p *Page) UpdateContainer(id string, view session.ContainerView) error {
	e, ok := p.byID[id]
	if !ok {
		return errors.Wrapf(session.ErrMissingTarget, "container %s", id)
	}
	e.view = view
	return nil
}

func (p *Page) EnableFollowUp(id string) error {
	e, ok := p.byID[id]
	if !ok {
		return errors.Wrapf(session.ErrMissingTarget, "follow-up for %s", id)
	}
	e.followUp = true
	return nil
}

func (p *Page) AppendMessage(msg session.Message) {
	p.entries = append(p.entries, &entry{kind: entryMessage, msg: msg})
}

func (p *Page) ClearOutput() {
	p.entries = nil
	p.byID = map[string]*entry{}
}

func (p *Page) Notify(text string) {
	p.notice = text
}

func (p *Page) Notice() string {
	return p.notice
}

func (p *Page) DismissNotice() {
	p.notice = ""
}

// InProgress reports whether any container still streams.
func (p *Page) InProgress() bool {
	for _, e := range p.entries {
		if e.kind == entryContainer && e.view.InProgress {
			return true
		}
	}
	return false
}

// RenderOutput draws the output area. spinner is the current spinner frame
// shown next to containers still in progress.
func (p *Page) RenderOutput(spinner string) string {
	var b strings.Builder
	for i, e := range p.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryContainer:
			b.WriteString(renderContainer(e, spinner))
		case entryMessage:
			b.WriteString(renderMessage(e.msg))
		}
	}
	return b.String()
}

func renderContainer(e *entry, spinner string) string {
	title := e.view.Title
	if title == "" {
		title = e.id
	}
	header := containerTitleStyle.Render(title)
	switch {
	case e.view.InProgress:
		header += " " + pendingStyle.Render(spinner)
	case e.followUp:
		header += " " + followUpStyle.Render(followUpHint(e.id))
	}
	body := e.view.Rendered
	if e.view.RenderFailed {
		body = rawStyle.Render(e.view.Text)
	}
	return header + "\n" + strings.TrimRight(body, "\n") + "\n"
}

// followUpHint names the command that continues the conversation about a
// finished container.
func followUpHint(id string) string {
	return "➤ follow-up: docchat chat --content-id " + id
}

func renderMessage(m session.Message) string {
	var header string
	switch {
	case m.User:
		header = userStyle.Render(m.Sender)
	case m.Sender == session.SenderSystem:
		header = systemStyle.Render(m.Sender)
	default:
		header = aiStyle.Render(m.Sender)
	}
	return header + "\n" + strings.TrimRight(m.Rendered, "\n") + "\n"
}
