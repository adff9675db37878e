package redis

import (
	"context"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sachinkaru123/inventory-bridge/internal/events"
	"github.com/sachinkaru123/inventory-bridge/internal/metrics"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/correlation"
)

// Dispatcher consumes classified events.
type Dispatcher interface {
	Dispatch(event events.Event)
}

// Listener holds the single broker subscription and feeds classified events
// to the dispatcher. Messages are handled sequentially in the order the
// broker delivers them per channel.
type Listener struct {
	rdb        *goredis.Client
	classifier *events.Classifier
	dispatcher Dispatcher
	sub        *goredis.PubSub
	done       chan struct{}
}

// NewListener creates a listener. Call Start to subscribe.
func NewListener(client *Client, classifier *events.Classifier, dispatcher Dispatcher) *Listener {
	return &Listener{
		rdb:        client.rdb,
		classifier: classifier,
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
}

// Start subscribes to the fixed channel set exactly once and begins pumping
// messages. A failed subscribe is logged and not retried: the process keeps
// serving connected clients, it just stops seeing broker events.
func (l *Listener) Start(ctx context.Context) {
	channels := make([]string, len(events.Channels))
	for i, ch := range events.Channels {
		channels[i] = string(ch)
	}

	sub := l.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		slog.Error("Failed to subscribe to broker channels", "channels", channels, "error", err)
		_ = sub.Close()
		close(l.done)
		return
	}

	l.sub = sub
	slog.Info("Subscribed to broker channels", "channels", channels)
	go l.consume()
}

func (l *Listener) consume() {
	defer close(l.done)
	for msg := range l.sub.Channel() {
		l.handleMessage(msg.Channel, []byte(msg.Payload))
	}
}

// handleMessage classifies one raw broker message and dispatches the result.
// Malformed payloads are logged and dropped; the listener keeps going.
func (l *Listener) handleMessage(channel string, payload []byte) {
	ctx := correlation.WithID(context.Background(), correlation.NewID())
	metrics.MessagesReceivedTotal.WithLabelValues(channel).Inc()

	event, err := l.classifier.Classify(events.Channel(channel), payload)
	if err != nil {
		if errors.Is(err, events.ErrUnknownChannel) {
			slog.DebugContext(ctx, "Ignoring message on unknown channel", "channel", channel)
			return
		}
		metrics.DecodeFailuresTotal.WithLabelValues(channel).Inc()
		slog.ErrorContext(ctx, "Dropping malformed broker message", "channel", channel, "payload", string(payload), "error", err)
		return
	}

	l.dispatcher.Dispatch(event)
}

// Close unsubscribes and waits for the message pump to drain.
// Only valid after Start has returned.
func (l *Listener) Close() {
	if l.sub != nil {
		_ = l.sub.Close()
	}
	<-l.done
}
