// Package eventbus carries server events from the socket read loop to the
// goroutine that owns the page.
//
// Every event is published as a watermill message on Topic. A single router
// handler consumes the topic, so handlers run one at a time and to completion
// in arrival order. The default transport is an in-memory gochannel; with
// RedisEnabled the topic is a Redis stream and other processes can follow the
// same session by joining with their own consumer group.
package eventbus

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/socketio"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Topic = "docchat.events"

const metadataEvent = "event"

// Settings selects the transport.
type Settings struct {
	RedisEnabled bool
	RedisAddr    string
	Group        string
	Consumer     string
	// Logger replaces the global logger when set.
	Logger *zerolog.Logger
}

func DefaultSettings() Settings {
	return Settings{
		RedisAddr: "localhost:6379",
		Group:     "docchat-ui",
		Consumer:  "ui-1",
	}
}

// Publisher is the publishing half of the bus.
type Publisher interface {
	Publish(ev session.Event) error
}

type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	redis      *redis.Client
	logger     zerolog.Logger
}

var _ Publisher = &Bus{}

// New builds the bus. With Redis enabled the consumer group is created at the
// tail of the stream so a new UI does not replay old sessions.
func New(ctx context.Context, s Settings) (*Bus, error) {
	base := log.Logger
	if s.Logger != nil {
		base = *s.Logger
	}
	logger := base.With().Str("component", "eventbus").Logger()
	wlogger := NewWatermillLogger(logger)

	b := &Bus{logger: logger}
	if s.RedisEnabled {
		if err := b.initRedis(ctx, s, wlogger); err != nil {
			return nil, err
		}
	} else {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		}, wlogger)
		b.publisher = ch
		b.subscriber = ch
	}

	router, err := message.NewRouter(message.RouterConfig{}, wlogger)
	if err != nil {
		_ = b.closeTransport()
		return nil, errors.Wrap(err, "create router")
	}
	router.AddMiddleware(middleware.Recoverer)
	b.router = router

	logger.Debug().Bool("redis", s.RedisEnabled).Str("topic", Topic).Msg("event bus ready")
	return b, nil
}

func (b *Bus) initRedis(ctx context.Context, s Settings, wlogger watermill.LoggerAdapter) error {
	if strings.TrimSpace(s.RedisAddr) == "" {
		return errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	if err := b.ensureGroupAtTail(ctx, client, Topic, s.Group); err != nil {
		_ = client.Close()
		return err
	}
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, wlogger)
	if err != nil {
		_ = client.Close()
		return errors.Wrap(err, "create redis publisher")
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, wlogger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return errors.Wrap(err, "create redis subscriber")
	}
	b.redis = client
	b.publisher = pub
	b.subscriber = sub
	return nil
}

func (b *Bus) ensureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	if group == "" {
		return nil
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	b.logger.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at tail")
	return nil
}

// Publish sends one event on the topic. On the in-memory transport it returns
// once the handler has acknowledged the event.
func (b *Bus) Publish(ev session.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEvent, ev.Name)
	if err := b.publisher.Publish(Topic, msg); err != nil {
		return errors.Wrapf(err, "publish %s", ev.Name)
	}
	return nil
}

// Handle registers the consumer of the topic. Handler errors are logged and
// the message is acknowledged; a failing handler never blocks the stream.
func (b *Bus) Handle(name string, h func(session.Event) error) {
	b.router.AddNoPublisherHandler(name, Topic, b.subscriber, func(msg *message.Message) error {
		ev, err := Decode(msg)
		if err != nil {
			b.logger.Error().Err(err).Str("payload", string(msg.Payload)).Msg("dropping undecodable message")
			return nil
		}
		if err := h(ev); err != nil {
			b.logger.Warn().Err(err).Str("event", ev.Name).Msg("event handler failed")
		}
		return nil
	})
}

// Decode reads an event published with Publish.
func Decode(msg *message.Message) (session.Event, error) {
	var ev session.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return session.Event{}, errors.Wrap(err, "decode event")
	}
	if ev.Name == "" {
		ev.Name = msg.Metadata.Get(metadataEvent)
	}
	if ev.Name == "" {
		return session.Event{}, errors.New("event without name")
	}
	return ev, nil
}

// Run blocks until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once all handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

func (b *Bus) Close() error {
	var first error
	if err := b.router.Close(); err != nil {
		first = errors.Wrap(err, "close router")
	}
	if err := b.closeTransport(); err != nil && first == nil {
		first = err
	}
	return first
}

func (b *Bus) closeTransport() error {
	var first error
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil {
			first = errors.Wrap(err, "close publisher")
		}
	}
	if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close subscriber")
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) && first == nil {
			first = errors.Wrap(err, "close redis client")
		}
	}
	return first
}

// Source is anything that reports every socket event; *socketio.Client does.
type Source interface {
	OnAny(h socketio.AnyHandler)
}

// Bridge publishes every event seen by src onto p.
func Bridge(src Source, p Publisher) {
	src.OnAny(func(event string, payload json.RawMessage) {
		if err := p.Publish(session.Event{Name: event, Payload: payload}); err != nil {
			log.Error().Str("component", "eventbus").Err(err).Str("event", event).Msg("could not forward socket event")
		}
	})
}
