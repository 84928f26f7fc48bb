// Package session is the streaming session manager behind a docchat page.
//
// A Session owns the connection (through an Emitter), the compose/streaming
// mode, the at most one pending request and the stream buffers keyed by
// server stream id. Server events reach it through HandleEvent, user actions
// through Activate, KeyEnter and InputChanged. All of them run to completion
// under the session lock, one at a time.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/docchat/pkg/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingTarget    = errors.New("missing target")
	ErrNoFilesSelected  = errors.New("no files selected")
	ErrEmptyInput       = errors.New("empty input")
	ErrMissingContentID = errors.New("missing content id")
)

// Notices shown to the user.
const (
	NoticeNoFiles      = "Please select at least one file."
	NoticeEmptyInput   = "Please enter a message."
	NoticeNoContentID  = "No document selected for chat."
	NoticeHistoryReset = "Chat history reset."
)

const (
	SenderUser   = "You"
	SenderAI     = "AI"
	SenderSystem = "System Error"
)

// Kind selects which page a session drives.
type Kind int

const (
	// KindDocuments queries one or more documents; the server answers in one
	// container per document.
	KindDocuments Kind = iota
	// KindChat continues a conversation about a single cached document.
	KindChat
)

func (k Kind) String() string {
	if k == KindChat {
		return "chat"
	}
	return "documents"
}

// PendingRequest is the request currently being answered.
type PendingRequest struct {
	ID          string
	Event       string
	Payload     Request
	SubmittedAt time.Time
}

type Config struct {
	Kind      Kind
	ContentID string
	Controls  Controls
	Renderer  render.Renderer
	Now       func() time.Time
	NewID     func() string
}

type Session struct {
	mu sync.Mutex

	kind      Kind
	contentID string
	controls  Controls
	renderer  render.Renderer
	now       func() time.Time
	newID     func() string

	emitter Emitter
	surface Surface
	logger  zerolog.Logger

	mode    Mode
	actions map[Mode]func() error
	pending *PendingRequest
	buffers *Accumulator

	chatStream    string
	historyLoaded bool
}

func New(emitter Emitter, surface Surface, cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.Plain
	}
	s := &Session{
		kind:      cfg.Kind,
		contentID: cfg.ContentID,
		controls:  cfg.Controls,
		renderer:  cfg.Renderer,
		now:       cfg.Now,
		newID:     cfg.NewID,
		emitter:   emitter,
		surface:   surface,
		mode:      ModeCompose,
		buffers:   NewAccumulator(cfg.Now),
		logger: log.With().
			Str("component", "session").
			Str("kind", cfg.Kind.String()).
			Logger(),
	}
	s.actions = map[Mode]func() error{
		ModeCompose:   s.submit,
		ModeStreaming: s.cancel,
	}
	s.surface.SetActionMode(ModeCompose)
	s.refreshGate()
	return s
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Pending returns a copy of the in-flight request, if any.
func (s *Session) Pending() (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingRequest{}, false
	}
	return *s.pending, true
}

// Buffer returns a snapshot of the stream buffer for id.
func (s *Session) Buffer(id string) (text string, active bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers.Get(id)
	if !ok {
		return "", false, false
	}
	return b.Text(), b.Active(), true
}

// Activate runs the action of the current mode: submit while composing,
// cancel while streaming.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions[s.mode]()
}

// KeyEnter handles Enter in the input. With shift it reports false so the
// caller inserts a newline. Without shift it submits when the gate allows it
// and is swallowed otherwise.
func (s *Session) KeyEnter(shift bool) (bool, error) {
	if shift {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeCompose || ActionDisabled(s.surface.InputText(), s.mode) {
		return true, nil
	}
	return true, s.submit()
}

// InputChanged recomputes the gate after the input text changed.
func (s *Session) InputChanged(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.SetActionDisabled(ActionDisabled(text, s.mode))
}

func (s *Session) refreshGate() {
	s.surface.SetActionDisabled(ActionDisabled(s.surface.InputText(), s.mode))
}

func (s *Session) setMode(m Mode) {
	if s.mode != m {
		s.logger.Debug().Stringer("from", s.mode).Stringer("to", m).Msg("mode transition")
	}
	s.mode = m
	s.surface.SetActionMode(m)
	s.refreshGate()
}

func (s *Session) submit() error {
	text := strings.TrimSpace(s.surface.InputText())
	if text == "" {
		s.surface.Notify(NoticeEmptyInput)
		return ErrEmptyInput
	}

	opts := ExtractOptions(s.controls)
	event := EmitStartProcessing
	contentID := ""
	switch s.kind {
	case KindDocuments:
		if len(opts.Files) == 0 {
			s.surface.Notify(NoticeNoFiles)
			return ErrNoFilesSelected
		}
	case KindChat:
		if s.contentID == "" {
			s.surface.Notify(NoticeNoContentID)
			return ErrMissingContentID
		}
		event = EmitSendChatMessage
		contentID = s.contentID
		opts.Files = nil
	}

	req := &PendingRequest{
		ID:          s.newID(),
		Event:       event,
		Payload:     opts.Request(text, contentID),
		SubmittedAt: s.now(),
	}

	if s.kind == KindChat {
		s.surface.AppendMessage(s.message(SenderUser, text, true))
	}
	if err := s.emitter.Emit(req.Event, req.Payload); err != nil {
		s.logger.Error().Err(err).Str("event", req.Event).Msg("could not send request")
		s.surface.Notify("Could not send request: " + err.Error())
		return errors.Wrapf(err, "emit %s", req.Event)
	}

	s.pending = req
	if s.kind == KindChat {
		s.chatStream = req.ID
	}
	s.logger.Info().
		Str("request_id", req.ID).
		Str("event", req.Event).
		Int("files", len(req.Payload.PDFFiles)).
		Str("model", req.Payload.Model).
		Msg("request submitted")

	s.surface.ClearInput()
	s.setMode(ModeStreaming)
	return nil
}

// cancel only asks the server to stop; the mode flips on stream_stopped.
func (s *Session) cancel() error {
	if err := s.emitter.Emit(EmitStopProcessing); err != nil {
		s.logger.Error().Err(err).Msg("could not send stop request")
		return errors.Wrap(err, "emit stop_processing")
	}
	s.logger.Info().Msg("stop requested")
	s.refreshGate()
	return nil
}

// HandleEvent applies one server event. Malformed payloads and missing
// targets are logged and the event is dropped.
func (s *Session) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch ev.Name {
	case EventConnect:
		s.logger.Info().Msg("connected")
	case EventDisconnect:
		s.logger.Warn().Msg("disconnected")
	case EventError:
		err = s.onError(ev)
	case EventNewContainer:
		err = s.onNewContainer(ev)
	case EventUpdateContent:
		err = s.onUpdateContent(ev)
	case EventReceiveChatMessage:
		err = s.onChatMessage(ev)
	case EventStreamStopped:
		err = s.onStreamStopped(ev)
	case EventProcessingComplete:
		err = s.onProcessingComplete(ev)
	case EventChatHistoryLoaded:
		err = s.onChatHistory(ev)
	case EventHistoryResetSuccess:
		err = s.onHistoryReset(ev)
	default:
		s.logger.Debug().Str("event", ev.Name).Msg("ignoring event")
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Name).Msg("event dropped")
	}
}

func (s *Session) onError(ev Event) error {
	var e ServerError
	if err := decodePayload(ev.Payload, &e); err != nil || e.Message == "" {
		s.logger.Error().Str("payload", string(ev.Payload)).Msg("socket error")
		return nil
	}
	s.logger.Error().Str("message", e.Message).Msg("server error")
	s.surface.Notify(e.Message)
	return nil
}

func (s *Session) onNewContainer(ev Event) error {
	var nc NewContainer
	if err := decodePayload(ev.Payload, &nc); err != nil {
		return err
	}
	if nc.ID == "" {
		return errors.Wrap(ErrMissingTarget, "new_container without id")
	}
	b, created := s.buffers.Open(nc.ID, nc.Title)
	if !created {
		b.Title = nc.Title
		return s.refreshContainer(b)
	}
	if err := s.surface.CreateContainer(nc.ID, nc.Title); err != nil {
		return errors.Wrapf(err, "create container %s", nc.ID)
	}
	return s.refreshContainer(b)
}

func (s *Session) onUpdateContent(ev Event) error {
	var uc UpdateContent
	if err := decodePayload(ev.Payload, &uc); err != nil {
		return err
	}
	id := uc.Target()
	if id == "" {
		return errors.Wrap(ErrMissingTarget, "update_content without container id")
	}
	return s.appendChunk(id, "", uc.Chunk)
}

func (s *Session) onChatMessage(ev Event) error {
	var cm ChatMessage
	if err := decodePayload(ev.Payload, &cm); err != nil {
		return err
	}
	if cm.Message != nil {
		if s.chatStream == "" {
			s.chatStream = s.newID()
		}
		return s.appendChunk(s.chatStream, SenderAI, *cm.Message)
	}
	if cm.Error != "" {
		s.logger.Error().Str("error", cm.Error).Msg("chat error from server")
		s.surface.AppendMessage(s.message(SenderSystem, cm.Error, false))
		if s.chatStream != "" {
			s.finish(s.chatStream)
		}
	}
	return nil
}

// appendChunk adds a fragment and re-renders the whole buffer. Chunks for a
// finished stream are dropped.
func (s *Session) appendChunk(id, title, chunk string) error {
	b, created, accepted := s.buffers.Append(id, chunk)
	if !accepted {
		s.logger.Debug().Str("stream_id", id).Int("bytes", len(chunk)).Msg("dropping late chunk")
		return nil
	}
	if created {
		b.Title = title
		if err := s.surface.CreateContainer(id, title); err != nil {
			return errors.Wrapf(err, "create container %s", id)
		}
	}
	return s.refreshContainer(b)
}

func (s *Session) refreshContainer(b *StreamBuffer) error {
	rendered, err := render.Safe(s.renderer, b.Text())
	if err != nil {
		s.logger.Warn().Err(err).Str("stream_id", b.ID).Msg("render failed, showing raw text")
	}
	view := ContainerView{
		Title:        b.Title,
		Text:         b.Text(),
		Rendered:     rendered,
		InProgress:   b.Active(),
		RenderFailed: err != nil,
	}
	if err := s.surface.UpdateContainer(b.ID, view); err != nil {
		return errors.Wrapf(err, "update container %s", b.ID)
	}
	return nil
}

func (s *Session) finish(id string) {
	if !s.buffers.Finish(id) {
		return
	}
	b, _ := s.buffers.Get(id)
	if err := s.refreshContainer(b); err != nil {
		s.logger.Warn().Err(err).Msg("could not clear in-progress state")
	}
}

func (s *Session) onStreamStopped(ev Event) error {
	var st StreamStopped
	if err := decodePayload(ev.Payload, &st); err != nil {
		s.logger.Warn().Err(err).Msg("malformed stream_stopped payload, stopping all streams")
	}
	if st.ContainerID != "" {
		s.finish(st.ContainerID)
	} else {
		for _, id := range s.buffers.ActiveIDs() {
			s.finish(id)
		}
	}
	if s.pending != nil {
		s.logger.Info().
			Str("request_id", s.pending.ID).
			Dur("elapsed", s.now().Sub(s.pending.SubmittedAt)).
			Msg("stream stopped")
	}
	s.pending = nil
	s.setMode(ModeCompose)
	return nil
}

func (s *Session) onProcessingComplete(ev Event) error {
	var pc ProcessingComplete
	if err := decodePayload(ev.Payload, &pc); err != nil {
		return err
	}
	if pc.ContainerID == "" {
		return errors.Wrap(ErrMissingTarget, "processing complete without container id")
	}
	s.finish(pc.ContainerID)
	if err := s.surface.EnableFollowUp(pc.ContainerID); err != nil {
		return errors.Wrapf(err, "enable follow-up %s", pc.ContainerID)
	}
	return nil
}

func (s *Session) onChatHistory(ev Event) error {
	if s.historyLoaded {
		s.logger.Debug().Msg("chat history already rendered")
		return nil
	}
	var h ChatHistory
	if err := decodePayload(ev.Payload, &h); err != nil {
		return err
	}
	s.historyLoaded = true
	if h.Title != "" {
		s.surface.SetTitle(h.Title)
	}
	for _, turn := range h.ChatHistory {
		if turn.Role == "user" {
			s.surface.AppendMessage(s.message(SenderUser, turn.Text(), true))
		} else {
			s.surface.AppendMessage(s.message(SenderAI, turn.Text(), false))
		}
	}
	s.logger.Info().Int("turns", len(h.ChatHistory)).Msg("chat history loaded")
	return nil
}

func (s *Session) onHistoryReset(ev Event) error {
	var hr HistoryReset
	if err := decodePayload(ev.Payload, &hr); err != nil {
		return err
	}
	s.logger.Info().Str("content_id", hr.ContentID).Msg("chat history reset")
	if s.kind != KindChat || (hr.ContentID != "" && hr.ContentID != s.contentID) {
		return nil
	}
	s.clearPage()
	s.historyLoaded = false
	s.surface.Notify(NoticeHistoryReset)
	return s.loadHistory()
}

func (s *Session) message(sender, text string, user bool) Message {
	rendered, err := render.Safe(s.renderer, text)
	if err != nil {
		s.logger.Warn().Err(err).Str("sender", sender).Msg("render failed, showing raw text")
	}
	return Message{Sender: sender, Text: text, Rendered: rendered, User: user}
}

// clearPage empties the output. The chat stream id is kept so that chunks
// still in flight for it are dropped with the retired buffer.
func (s *Session) clearPage() {
	s.surface.ClearOutput()
	s.buffers.Reset()
}

// EnterChat requests the stored conversation for the chat page.
func (s *Session) EnterChat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind != KindChat {
		return nil
	}
	if s.contentID == "" {
		s.surface.Notify(NoticeNoContentID)
		return ErrMissingContentID
	}
	return s.loadHistory()
}

func (s *Session) loadHistory() error {
	if err := s.emitter.Emit(EmitLoadChatHistory, contentRef{ContentID: s.contentID}); err != nil {
		return errors.Wrap(err, "emit load_chat_history")
	}
	return nil
}

// ClearOutput stops a running stream and empties the output area. On the
// documents page it also drops the answers cached by the server.
func (s *Session) ClearOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeStreaming {
		if err := s.cancel(); err != nil {
			return err
		}
	}
	s.clearPage()
	if s.kind == KindDocuments {
		if err := s.emitter.Emit(EmitClearCache); err != nil {
			return errors.Wrap(err, "emit clear_cache")
		}
	}
	return nil
}

// ResetHistory asks the server to drop all but the first exchange of the
// chat. The page is refreshed on history_reset_success.
func (s *Session) ResetHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind != KindChat {
		return nil
	}
	if s.contentID == "" {
		s.surface.Notify(NoticeNoContentID)
		return ErrMissingContentID
	}
	if err := s.emitter.Emit(EmitResetChatHistory, contentRef{ContentID: s.contentID}); err != nil {
		return errors.Wrap(err, "emit reset_chat_history")
	}
	return nil
}
