package socketio

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const TransportWebsocket = "websocket"

// Options mirrors the handful of Socket.IO client settings the document chat
// page relies on. Only the websocket transport is supported; there is no
// long-polling fallback and no upgrade negotiation.
type Options struct {
	Path                 string
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration
	RandomizationFactor  float64
	// Timeout bounds dialing plus the Engine.IO/Socket.IO handshake.
	Timeout time.Duration
	// Logger replaces the global logger when set.
	Logger *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Path:                 "/socket.io/",
		ReconnectionAttempts: 5,
		ReconnectionDelay:    time.Second,
		ReconnectionDelayMax: 5 * time.Second,
		RandomizationFactor:  0.5,
		Timeout:              5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Path == "" {
		o.Path = d.Path
	}
	if o.ReconnectionAttempts < 0 {
		o.ReconnectionAttempts = 0
	}
	if o.ReconnectionDelay <= 0 {
		o.ReconnectionDelay = d.ReconnectionDelay
	}
	if o.ReconnectionDelayMax < o.ReconnectionDelay {
		o.ReconnectionDelayMax = o.ReconnectionDelay
	}
	if o.RandomizationFactor < 0 || o.RandomizationFactor > 1 {
		o.RandomizationFactor = d.RandomizationFactor
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// EndpointFromOrigin turns a page origin such as http://127.0.0.1:5000 into
// the Engine.IO websocket endpoint for that origin.
func EndpointFromOrigin(origin string, path string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", errors.New("origin is empty")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", errors.Wrapf(err, "parse origin %q", origin)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("origin %q has no host", origin)
	}
	if path == "" {
		path = DefaultOptions().Path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path
	u.RawQuery = url.Values{
		"EIO":       []string{"4"},
		"transport": []string{TransportWebsocket},
	}.Encode()
	u.Fragment = ""
	u.User = nil
	return u.String(), nil
}
