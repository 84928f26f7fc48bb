package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type emitted struct {
	Event string
	Args  []json.RawMessage
}

type fakeEmitter struct {
	mu    sync.Mutex
	calls []emitted
	err   error
}

func (f *fakeEmitter) Emit(event string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	e := emitted{Event: event}
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		e.Args = append(e.Args, b)
	}
	f.calls = append(f.calls, e)
	return nil
}

func (f *fakeEmitter) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Event)
	}
	return out
}

func (f *fakeEmitter) count(event string) int {
	n := 0
	for _, e := range f.events() {
		if e == event {
			n++
		}
	}
	return n
}

func (f *fakeEmitter) last(t *testing.T) emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeSurface struct {
	input      string
	disabled   bool
	mode       Mode
	title      string
	containers map[string]ContainerView
	order      []string
	followUp   map[string]bool
	messages   []Message
	notices    []string
	cleared    int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		containers: map[string]ContainerView{},
		followUp:   map[string]bool{},
	}
}

func (f *fakeSurface) InputText() string { return f.input }
func (f *fakeSurface) ClearInput() { f.input = "" }
func (f *fakeSurface) SetActionDisabled(d bool) { f.disabled = d }
func (f *fakeSurface) SetActionMode(m Mode) { f.mode = m }
func (f *fakeSurface) SetTitle(title string) { f.title = title }
func (f *fakeSurface) AppendMessage(msg Message) { f.messages = append(f.messages, msg) }
func (f *fakeSurface) Notify(text string) { f.notices = append(f.notices, text) }

func (f *fakeSurface) CreateContainer(id, title string) error {
	if _, ok := f.containers[id]; ok {
		return fmt.Errorf("duplicate container %s", id)
	}
	f.containers[id] = ContainerView{Title: title, InProgress: true}
	f.order = append(f.order, id)
	f.followUp[id] = false
	return nil
}

func (f *fakeSurface) UpdateContainer(id string, view ContainerView) error {
	if _, ok := f.containers[id]; !ok {
		return ErrMissingTarget
	}
	f.containers[id] = view
	return nil
}

func (f *fakeSurface) EnableFollowUp(id string) error {
	if _, ok := f.containers[id]; !ok {
		return ErrMissingTarget
	}
	f.followUp[id] = true
	return nil
}

func (f *fakeSurface) ClearOutput() {
	f.cleared++
	f.containers = map[string]ContainerView{}
	f.order = nil
	f.followUp = map[string]bool{}
	f.messages = nil
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func newDocSession(t *testing.T, files ...string) (*Session, *fakeEmitter, *fakeSurface) {
	t.Helper()
	em := &fakeEmitter{}
	sf := newFakeSurface()
	s := New(em, sf, Config{
		Kind:     KindDocuments,
		Controls: MapControls{Files: files},
		Now:      func() time.Time { return fixedNow },
		NewID:    sequentialIDs(),
	})
	return s, em, sf
}

func newChatSession(t *testing.T, contentID string) (*Session, *fakeEmitter, *fakeSurface) {
	t.Helper()
	em := &fakeEmitter{}
	sf := newFakeSurface()
	s := New(em, sf, Config{
		Kind:      KindChat,
		ContentID: contentID,
		Now:       func() time.Time { return fixedNow },
		NewID:     sequentialIDs(),
	})
	return s, em, sf
}

func event(t *testing.T, name string, payload any) Event {
	t.Helper()
	if payload == nil {
		return Event{Name: name}
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return Event{Name: name, Payload: b}
}
