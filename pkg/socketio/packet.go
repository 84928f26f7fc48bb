package socketio

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Engine.IO v4 packet types, sent as the first byte of every websocket frame.
type engineType byte

const (
	engineOpen    engineType = '0'
	engineClose   engineType = '1'
	enginePing    engineType = '2'
	enginePong    engineType = '3'
	engineMessage engineType = '4'
	engineUpgrade engineType = '5'
	engineNoop    engineType = '6'
)

// PacketType is a Socket.IO v5 packet type carried inside an Engine.IO message.
type PacketType int

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketDisconnect:
		return "DISCONNECT"
	case PacketEvent:
		return "EVENT"
	case PacketAck:
		return "ACK"
	case PacketConnectError:
		return "CONNECT_ERROR"
	case PacketBinaryEvent:
		return "BINARY_EVENT"
	case PacketBinaryAck:
		return "BINARY_ACK"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

const defaultNamespace = "/"

var (
	ErrEmptyFrame        = errors.New("empty frame")
	ErrBinaryUnsupported = errors.New("binary packets are not supported")
)

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	// AckID is -1 when the packet does not request an acknowledgement.
	AckID int
	Data  json.RawMessage
}

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Encode renders the packet as a complete Engine.IO message frame.
func (p Packet) Encode() []byte {
	var b strings.Builder
	b.WriteByte(byte(engineMessage))
	b.WriteString(strconv.Itoa(int(p.Type)))
	if p.Namespace != "" && p.Namespace != defaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.AckID >= 0 {
		b.WriteString(strconv.Itoa(p.AckID))
	}
	if len(p.Data) > 0 {
		b.Write(p.Data)
	}
	return []byte(b.String())
}

// NewEventPacket builds an EVENT packet whose data is the JSON array [name, args...].
func NewEventPacket(name string, args ...any) (Packet, error) {
	if name == "" {
		return Packet{}, errors.New("event name is required")
	}
	arr := make([]any, 0, len(args)+1)
	arr = append(arr, name)
	for _, a := range args {
		if a == nil {
			continue
		}
		arr = append(arr, a)
	}
	data, err := json.Marshal(arr)
	if err != nil {
		return Packet{}, errors.Wrapf(err, "marshal event %s", name)
	}
	return Packet{Type: PacketEvent, AckID: -1, Data: data}, nil
}

// Event returns the event name and its first argument. Events without an
// argument return a nil payload.
func (p Packet) Event() (string, json.RawMessage, error) {
	if p.Type != PacketEvent {
		return "", nil, errors.Errorf("packet %s is not an event", p.Type)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(p.Data, &arr); err != nil {
		return "", nil, errors.Wrap(err, "decode event array")
	}
	if len(arr) == 0 {
		return "", nil, errors.New("event array is empty")
	}
	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		return "", nil, errors.Wrap(err, "decode event name")
	}
	if len(arr) == 1 {
		return name, nil, nil
	}
	return name, arr[1], nil
}

// splitFrame separates the Engine.IO type byte from the frame body.
func splitFrame(frame []byte) (engineType, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	t := engineType(frame[0])
	if t < engineOpen || t > engineNoop {
		return 0, nil, errors.Errorf("unknown engine.io packet type %q", frame[0])
	}
	return t, frame[1:], nil
}

// DecodePacket parses the Socket.IO part of an Engine.IO message body.
func DecodePacket(body []byte) (Packet, error) {
	if len(body) == 0 {
		return Packet{}, ErrEmptyFrame
	}
	if body[0] < '0' || body[0] > '6' {
		return Packet{}, errors.Errorf("unknown socket.io packet type %q", body[0])
	}
	p := Packet{
		Type:      PacketType(body[0] - '0'),
		Namespace: defaultNamespace,
		AckID:     -1,
	}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, ErrBinaryUnsupported
	}
	rest := body[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return Packet{}, errors.Wrap(err, "decode ack id")
		}
		p.AckID = id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return Packet{}, errors.Errorf("invalid json payload in %s packet", p.Type)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}
