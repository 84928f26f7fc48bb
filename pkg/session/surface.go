package session

// Emitter sends one event to the server. *socketio.Client satisfies it.
type Emitter interface {
	Emit(event string, args ...any) error
}

// ContainerView is what a container shows after each update.
type ContainerView struct {
	Title        string
	Text         string
	Rendered     string
	InProgress   bool
	RenderFailed bool
}

// Message is a complete, non-streamed entry of the output area.
type Message struct {
	Sender   string
	Text     string
	Rendered string
	User     bool
}

// Surface is the page the session drives. Methods that address a container
// return ErrMissingTarget when it does not exist.
type Surface interface {
	InputText() string
	ClearInput()
	SetActionDisabled(disabled bool)
	SetActionMode(mode Mode)
	SetTitle(title string)

	CreateContainer(id, title string) error
	UpdateContainer(id string, view ContainerView) error
	EnableFollowUp(id string) error

	AppendMessage(msg Message)
	ClearOutput()
	// Notify shows a blocking notice to the user.
	Notify(text string)
}
