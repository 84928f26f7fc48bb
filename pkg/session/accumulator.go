package session

import (
	"strings"
	"time"
)

// StreamBuffer collects the chunks of one server stream (a container on the
// documents page, one answer on the chat page).
type StreamBuffer struct {
	ID        string
	Title     string
	CreatedAt time.Time

	text   strings.Builder
	active bool
	chunks int
}

func (b *StreamBuffer) Text() string {
	return b.text.String()
}

// Active reports whether the buffer still receives chunks.
func (b *StreamBuffer) Active() bool {
	return b.active
}

func (b *StreamBuffer) Chunks() int {
	return b.chunks
}

// Accumulator maps stream ids to buffers. Chunks are appended in arrival
// order without reordering or deduplication.
type Accumulator struct {
	now     func() time.Time
	buffers map[string]*StreamBuffer
	order   []string
	// retired holds the ids of buffers dropped by Reset. They never take
	// chunks again.
	retired map[string]struct{}
}

func NewAccumulator(now func() time.Time) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{
		now:     now,
		buffers: map[string]*StreamBuffer{},
		retired: map[string]struct{}{},
	}
}

// Open creates an active buffer for id. An existing buffer is returned as is
// and created is false.
func (a *Accumulator) Open(id, title string) (buf *StreamBuffer, created bool) {
	if b, ok := a.buffers[id]; ok {
		return b, false
	}
	b := &StreamBuffer{ID: id, Title: title, CreatedAt: a.now(), active: true}
	a.buffers[id] = b
	a.order = append(a.order, id)
	return b, true
}

// Append adds fragment to the buffer for id, creating it if absent. Chunks for
// a finished or retired buffer are dropped and accepted is false; buf is nil
// for a retired id.
func (a *Accumulator) Append(id, fragment string) (buf *StreamBuffer, created, accepted bool) {
	if a.Retired(id) {
		return nil, false, false
	}
	b, created := a.Open(id, "")
	if !b.active {
		return b, false, false
	}
	b.text.WriteString(fragment)
	b.chunks++
	return b, created, true
}

// Finish marks the buffer inactive and keeps its text. It returns false when
// the buffer is unknown or already finished.
func (a *Accumulator) Finish(id string) bool {
	b, ok := a.buffers[id]
	if !ok || !b.active {
		return false
	}
	b.active = false
	return true
}

func (a *Accumulator) Get(id string) (*StreamBuffer, bool) {
	b, ok := a.buffers[id]
	return b, ok
}

// ActiveIDs returns the ids of buffers still receiving chunks, in creation order.
func (a *Accumulator) ActiveIDs() []string {
	var ids []string
	for _, id := range a.order {
		if a.buffers[id].active {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *Accumulator) Len() int {
	return len(a.order)
}

// Retired reports whether id belonged to a buffer dropped by Reset.
func (a *Accumulator) Retired(id string) bool {
	_, ok := a.retired[id]
	return ok
}

// Reset drops every buffer and retires its id.
func (a *Accumulator) Reset() {
	for id := range a.buffers {
		a.retired[id] = struct{}{}
	}
	a.buffers = map[string]*StreamBuffer{}
	a.order = nil
}
