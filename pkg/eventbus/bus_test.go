package eventbus

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/socketio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T, h func(session.Event) error) *Bus {
	t.Helper()
	b, err := New(context.Background(), DefaultSettings())
	require.NoError(t, err)
	b.Handle("test", h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, b.Close())
		<-done
	})

	select {
	case <-b.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return b
}

func TestEventsAreHandledInOrderOneAtATime(t *testing.T) {
	var (
		mu       sync.Mutex
		got      []string
		inflight int32
		overlap  int32
	)
	b := startBus(t, func(ev session.Event) error {
		if atomic.AddInt32(&inflight, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, string(ev.Payload))
		mu.Unlock()
		atomic.AddInt32(&inflight, -1)
		return nil
	})

	want := []string{}
	for i := 0; i < 20; i++ {
		chunk, err := json.Marshal(map[string]any{"container_id": "c1", "chunk": i})
		require.NoError(t, err)
		want = append(want, string(chunk))
		require.NoError(t, b.Publish(session.Event{Name: session.EventUpdateContent, Payload: chunk}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, got)
	require.Equal(t, int32(0), atomic.LoadInt32(&overlap))
}

func TestHandlerErrorDoesNotBlockStream(t *testing.T) {
	var n int32
	b := startBus(t, func(ev session.Event) error {
		atomic.AddInt32(&n, 1)
		return errors.New("surface gone")
	})
	require.NoError(t, b.Publish(session.Event{Name: session.EventStreamStopped}))
	require.NoError(t, b.Publish(session.Event{Name: session.EventStreamStopped}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&n) == 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestDecode(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"name":"new_container","payload":{"id":"c1","title":"A"}}`))
	ev, err := Decode(msg)
	require.NoError(t, err)
	require.Equal(t, session.EventNewContainer, ev.Name)
	require.JSONEq(t, `{"id":"c1","title":"A"}`, string(ev.Payload))

	msg = message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	msg.Metadata.Set("event", "stream_stopped")
	ev, err = Decode(msg)
	require.NoError(t, err)
	require.Equal(t, session.EventStreamStopped, ev.Name)

	_, err = Decode(message.NewMessage(watermill.NewUUID(), []byte(`{}`)))
	require.Error(t, err)
	_, err = Decode(message.NewMessage(watermill.NewUUID(), []byte(`nope`)))
	require.Error(t, err)
}

func TestRedisWithoutAddressFails(t *testing.T) {
	s := DefaultSettings()
	s.RedisEnabled = true
	s.RedisAddr = " "
	_, err := New(context.Background(), s)
	require.Error(t, err)
}

type fakeSource struct {
	handlers []socketio.AnyHandler
}

func (f *fakeSource) OnAny(h socketio.AnyHandler) {
	f.handlers = append(f.handlers, h)
}

type recordingPublisher struct {
	events []session.Event
	err    error
}

func (r *recordingPublisher) Publish(ev session.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestBridgeForwardsSocketEvents(t *testing.T) {
	src := &fakeSource{}
	pub := &recordingPublisher{}
	Bridge(src, pub)
	require.Len(t, src.handlers, 1)

	src.handlers[0](socketio.EventConnect, nil)
	src.handlers[0](session.EventUpdateContent, json.RawMessage(`{"container_id":"c","chunk":"x"}`))

	require.Equal(t, []session.Event{
		{Name: "connect"},
		{Name: "update_content", Payload: json.RawMessage(`{"container_id":"c","chunk":"x"}`)},
	}, pub.events)

	pub.err = errors.New("closed")
	require.NotPanics(t, func() { src.handlers[0](session.EventStreamStopped, nil) })
}

func TestWatermillLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWatermillLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	l.With(watermill.LogFields{"topic": Topic}).Info("subscribed", watermill.LogFields{"handler": "ui"})
	l.Error("publish failed", errors.New("boom"), nil)
	l.Trace("hidden", nil)

	out := buf.String()
	require.Contains(t, out, `"topic":"docchat.events"`)
	require.Contains(t, out, `"handler":"ui"`)
	require.Contains(t, out, `"error":"boom"`)
	require.NotContains(t, out, "hidden")
}
