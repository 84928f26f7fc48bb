package session

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Events pushed by the server.
const (
	EventConnect             = "connect"
	EventDisconnect          = "disconnect"
	EventError               = "error"
	EventNewContainer        = "new_container"
	EventUpdateContent       = "update_content"
	EventReceiveChatMessage  = "receive_chat_message"
	EventStreamStopped       = "stream_stopped"
	EventProcessingComplete  = "processing_complete_for_container"
	EventChatHistoryLoaded   = "chat_history_loaded"
	EventHistoryResetSuccess = "history_reset_success"
)

// Events sent to the server.
const (
	EmitStartProcessing  = "start_processing"
	EmitSendChatMessage  = "send_chat_message"
	EmitStopProcessing   = "stop_processing"
	EmitLoadChatHistory  = "load_chat_history"
	EmitClearCache       = "clear_cache"
	EmitResetChatHistory = "reset_chat_history"
)

// Event is one server-pushed event with its raw JSON payload.
type Event struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type NewContainer struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UpdateContent carries one chunk. Older servers name the target stream_id.
type UpdateContent struct {
	ContainerID string `json:"container_id"`
	StreamID    string `json:"stream_id"`
	Chunk       string `json:"chunk"`
}

func (u UpdateContent) Target() string {
	if u.ContainerID != "" {
		return u.ContainerID
	}
	return u.StreamID
}

type ChatMessage struct {
	Message *string `json:"message"`
	Error   string  `json:"error"`
}

type StreamStopped struct {
	ContainerID string `json:"container_id"`
}

type ProcessingComplete struct {
	ContainerID string `json:"container_id"`
}

// ChatTurn is one entry of a stored conversation.
type ChatTurn struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

func (t ChatTurn) Text() string {
	return strings.Join(t.Parts, "")
}

type ChatHistory struct {
	Title       string     `json:"title"`
	ChatHistory []ChatTurn `json:"chat_history"`
}

type HistoryReset struct {
	ContentID string `json:"contentId"`
}

type ServerError struct {
	Message string `json:"message"`
}

type contentRef struct {
	ContentID string `json:"contentId"`
}

// decodePayload unmarshals an event payload. An empty or null payload leaves
// v untouched.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "decode event payload")
	}
	return nil
}
