package socketio

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Reserved lifecycle event names. They are dispatched locally and never sent
// over the wire.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventError      = "error"
)

var (
	ErrNotConnected     = errors.New("socket is not connected")
	ErrClosed           = errors.New("socket is closed")
	errServerDisconnect = errors.New("server disconnected the socket")
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives the first argument of a server event, or nil when the event
// carries no argument.
type Handler func(payload json.RawMessage)

// AnyHandler receives every server event and every lifecycle event.
type AnyHandler func(event string, payload json.RawMessage)

// Client holds a single Socket.IO connection on the default namespace.
type Client struct {
	endpoint string
	opts     Options
	dialer   *websocket.Dialer
	logger   zerolog.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	attempts    int
	sid         string
	closing     bool
	handlers    map[string][]Handler
	anyHandlers []AnyHandler

	writeMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient creates a client for an endpoint built with EndpointFromOrigin.
func NewClient(endpoint string, opts Options) *Client {
	opts = opts.withDefaults()
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	c := &Client{
		endpoint: endpoint,
		opts:     opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.Timeout,
		},
		logger:   base.With().Str("component", "socketio").Str("endpoint", endpoint).Logger(),
		state:    StateClosed,
		handlers: map[string][]Handler{},
		done:     make(chan struct{}),
	}
	c.On(EventConnect, func(json.RawMessage) {
		c.logger.Info().Str("sid", c.SID()).Msg("socket connected")
	})
	c.On(EventDisconnect, func(json.RawMessage) {
		c.logger.Info().Msg("socket disconnected")
	})
	c.On(EventError, func(p json.RawMessage) {
		c.logger.Error().Str("error", string(p)).Msg("socket error")
	})
	return c
}

// On registers a handler for a named event. Handlers run on the read
// goroutine and must not block.
func (c *Client) On(event string, h Handler) {
	if c == nil || h == nil {
		return
	}
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

func (c *Client) OnAny(h AnyHandler) {
	if c == nil || h == nil {
		return
	}
	c.mu.Lock()
	c.anyHandlers = append(c.anyHandlers, h)
	c.mu.Unlock()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnection attempts made since the last
// successful connection.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) Transport() string {
	return TransportWebsocket
}

func (c *Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Done is closed once the client gave up reconnecting or was closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect establishes the connection and starts the read loop. Reconnection
// after an unexpected drop is handled in the background; Connect itself does
// not retry.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateClosed || c.conn != nil {
		c.mu.Unlock()
		return errors.New("socket already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, hs, err := c.dial(ctx)
	if err != nil {
		c.setState(StateClosed)
		c.dispatch(EventError, errorPayload(err))
		return err
	}
	if !c.attach(conn, hs) {
		return ErrClosed
	}
	go c.run(ctx, conn, hs)
	return nil
}

// Emit sends an event to the server. It returns once the frame is written;
// there is no application-level acknowledgement.
func (c *Client) Emit(event string, args ...any) error {
	p, err := NewEventPacket(event, args...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()
	if conn == nil || state != StateOpen {
		return ErrNotConnected
	}
	if err := c.write(conn, p.Encode()); err != nil {
		return errors.Wrapf(err, "emit %s", event)
	}
	c.logger.Debug().Str("event", event).Msg("emitted")
	return nil
}

// Close disconnects from the namespace and stops reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		_ = c.write(conn, Packet{Type: PacketDisconnect, AckID: -1}.Encode())
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.finish()
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, handshake, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.endpoint, nil)
	if err != nil {
		return nil, handshake{}, errors.Wrap(err, "dial socket")
	}
	hs, err := c.handshake(dialCtx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, handshake{}, err
	}
	return conn, hs, nil
}

// handshake reads the Engine.IO open packet, joins the default namespace and
// waits for the CONNECT acknowledgement.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (handshake, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.Timeout)
	}
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return handshake{}, errors.Wrap(err, "read open packet")
	}
	t, body, err := splitFrame(frame)
	if err != nil {
		return handshake{}, err
	}
	if t != engineOpen {
		return handshake{}, errors.Errorf("expected open packet, got %q", byte(t))
	}
	var hs handshake
	if err := json.Unmarshal(body, &hs); err != nil {
		return handshake{}, errors.Wrap(err, "decode open packet")
	}

	_ = conn.SetWriteDeadline(deadline)
	err = conn.WriteMessage(websocket.TextMessage, Packet{Type: PacketConnect, AckID: -1}.Encode())
	_ = conn.SetWriteDeadline(time.Time{})
	if err != nil {
		return handshake{}, errors.Wrap(err, "send connect packet")
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return handshake{}, errors.Wrap(err, "read connect ack")
		}
		t, body, err := splitFrame(frame)
		if err != nil {
			return handshake{}, err
		}
		switch t {
		case enginePing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{byte(enginePong)}); err != nil {
				return handshake{}, errors.Wrap(err, "answer ping")
			}
			continue
		case engineMessage:
		default:
			continue
		}
		p, err := DecodePacket(body)
		if err != nil {
			return handshake{}, err
		}
		switch p.Type {
		case PacketConnect:
			var ack struct {
				SID string `json:"sid"`
			}
			if len(p.Data) > 0 {
				_ = json.Unmarshal(p.Data, &ack)
			}
			if ack.SID != "" {
				hs.SID = ack.SID
			}
			return hs, nil
		case PacketConnectError:
			var cerr struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(p.Data, &cerr)
			return handshake{}, errors.Errorf("connect rejected: %s", cerr.Message)
		}
	}
}

// attach installs a freshly dialed conn. It reports false, and closes the
// conn, when Close ran while the dial was in flight.
func (c *Client) attach(conn *websocket.Conn, hs handshake) bool {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.sid = hs.SID
	c.state = StateOpen
	c.attempts = 0
	c.mu.Unlock()
	c.dispatch(EventConnect, nil)
	return true
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn, hs handshake) {
	for {
		err := c.readLoop(conn, hs)

		c.mu.Lock()
		closing := c.closing
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if closing || ctx.Err() != nil {
			c.finish()
			return
		}

		c.logger.Warn().Err(err).Msg("socket dropped")
		c.dispatch(EventDisconnect, nil)
		if errors.Is(err, errServerDisconnect) {
			c.finish()
			return
		}

		conn, hs, err = c.reconnect(ctx)
		if err != nil {
			c.dispatch(EventError, errorPayload(err))
			c.finish()
			return
		}
		if !c.attach(conn, hs) {
			c.finish()
			return
		}
	}
}

func (c *Client) reconnect(ctx context.Context) (*websocket.Conn, handshake, error) {
	if c.opts.ReconnectionAttempts == 0 {
		return nil, handshake{}, errors.New("reconnection disabled")
	}
	c.setState(StateConnecting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectionDelay
	b.MaxInterval = c.opts.ReconnectionDelayMax
	b.RandomizationFactor = c.opts.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= c.opts.ReconnectionAttempts; attempt++ {
		wait := b.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, handshake{}, ctx.Err()
		case <-timer.C:
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return nil, handshake{}, ErrClosed
		}
		c.attempts = attempt
		c.mu.Unlock()

		c.logger.Info().Int("attempt", attempt).Dur("after", wait).Msg("reconnecting")
		conn, hs, err := c.dial(ctx)
		if err == nil {
			return conn, hs, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
	}
	return nil, handshake{}, errors.Wrapf(lastErr, "gave up after %d reconnection attempts", c.opts.ReconnectionAttempts)
}

func (c *Client) readLoop(conn *websocket.Conn, hs handshake) error {
	liveness := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	for {
		if liveness > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(liveness))
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read frame")
		}
		t, body, err := splitFrame(frame)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		switch t {
		case enginePing:
			if err := c.write(conn, []byte{byte(enginePong)}); err != nil {
				return errors.Wrap(err, "answer ping")
			}
		case engineClose:
			return errors.New("server closed the engine")
		case engineMessage:
			if err := c.handlePacket(body); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handlePacket(body []byte) error {
	p, err := DecodePacket(body)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed packet")
		return nil
	}
	if p.Namespace != defaultNamespace {
		return nil
	}
	switch p.Type {
	case PacketEvent:
		name, payload, err := p.Event()
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed event")
			return nil
		}
		c.logger.Trace().Str("event", name).Msg("received")
		c.dispatch(name, payload)
	case PacketDisconnect:
		return errServerDisconnect
	case PacketConnectError:
		c.dispatch(EventError, p.Data)
	}
	return nil
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[event]...)
	anys := append([]AnyHandler(nil), c.anyHandlers...)
	c.mu.Unlock()
	for _, h := range hs {
		h(payload)
	}
	for _, h := range anys {
		h(event, payload)
	}
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	err := conn.WriteMessage(websocket.TextMessage, data)
	_ = conn.SetWriteDeadline(time.Time{})
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) finish() {
	c.setState(StateClosed)
	c.doneOnce.Do(func() { close(c.done) })
}

func errorPayload(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"message": err.Error()})
	return b
}
