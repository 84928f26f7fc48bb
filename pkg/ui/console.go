package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/pkg/errors"
)

// Console is a Surface for non-interactive runs. Containers are printed once
// they finish, messages as they arrive. Done is closed when a stream that
// was started ends.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	input    string
	mode     session.Mode
	started  bool
	views    map[string]session.ContainerView
	printed  map[string]bool
	followed map[string]bool
	notices  []string
	done     chan struct{}
	doneOnce sync.Once
}

var _ session.Surface = &Console{}

func NewConsole(w io.Writer, input string) *Console {
	return &Console{
		w:        w,
		input:    input,
		views:    map[string]session.ContainerView{},
		printed:  map[string]bool{},
		followed: map[string]bool{},
		done:     make(chan struct{}),
	}
}

func (c *Console) Done() <-chan struct{} {
	return c.done
}

func (c *Console) Notices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.notices...)
}

func (c *Console) InputText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Console) ClearInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = ""
}

func (c *Console) SetActionDisabled(bool) {}

func (c *Console) SetActionMode(mode session.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == session.ModeStreaming {
		c.started = true
	}
	if c.started && c.mode == session.ModeStreaming && mode == session.ModeCompose {
		c.doneOnce.Do(func() { close(c.done) })
	}
	c.mode = mode
}

func (c *Console) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, titleStyle.Render(title))
}

func (c *Console) CreateContainer(id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.views[id]; ok {
		return errors.Errorf("container %s already exists", id)
	}
	c.views[id] = session.ContainerView{Title: title, InProgress: true}
	return nil
}

func (c *Console) UpdateContainer(id string, view session.ContainerView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.views[id]; !ok {
		return errors.Wrapf(session.ErrMissingTarget, "container %s", id)
	}
	c.views[id] = view
	if !view.InProgress && !c.printed[id] {
		c.printed[id] = true
		e := &entry{kind: entryContainer, id: id, view: view}
		_, _ = fmt.Fprintln(c.w, renderContainer(e, ""))
	}
	return nil
}

func (c *Console) EnableFollowUp(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.views[id]; !ok {
		return errors.Wrapf(session.ErrMissingTarget, "follow-up for %s", id)
	}
	if !c.followed[id] {
		c.followed[id] = true
		_, _ = fmt.Fprintln(c.w, followUpStyle.Render(followUpHint(id)))
	}
	return nil
}

func (c *Console) AppendMessage(msg session.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, renderMessage(msg))
}

func (c *Console) ClearOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = map[string]session.ContainerView{}
	c.printed = map[string]bool{}
	c.followed = map[string]bool{}
}

func (c *Console) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, text)
	_, _ = fmt.Fprintln(c.w, noticeStyle.Render("! "+strings.TrimSpace(text)))
}
