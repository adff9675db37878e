package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Channel is a Redis Pub/Sub channel the bridge subscribes to.
type Channel string

const (
	ChannelInventory       Channel = "inventory"
	ChannelInventoryAlerts Channel = "inventory-alerts"
)

// Channels is the fixed subscription set.
var Channels = []Channel{ChannelInventory, ChannelInventoryAlerts}

// Kind classifies an event by its originating channel.
type Kind string

const (
	KindUpdate Kind = "update"
	KindAlert  Kind = "alert"
)

// Room is a named client interest group for scoped broadcast.
type Room string

const (
	RoomInventoryUpdates Room = "inventory-updates"
	RoomInventoryAlerts  Room = "inventory-alerts"
)

// Outbound event names, sent to clients over the wire.
const (
	NameInventoryUpdate = "inventory-update"
	NameInventoryAlert  = "inventory-alert"
)

// ErrUnknownChannel is returned for channels outside the routing table.
// Callers drop the message silently; the subscription set is fixed, so this
// should not occur in practice.
var ErrUnknownChannel = errors.New("events: unknown channel")

// Event is a classified broker message ready for dispatch. Events are value
// objects: produced, dispatched, and discarded within one handling pass.
type Event struct {
	Kind Kind
	Name string
	Room Room
	Data map[string]any
}

type route struct {
	kind Kind
	room Room
	name string
}

// Each channel maps to exactly one kind, one room, and one outbound name.
var routes = map[Channel]route{
	ChannelInventory:       {kind: KindUpdate, room: RoomInventoryUpdates, name: NameInventoryUpdate},
	ChannelInventoryAlerts: {kind: KindAlert, room: RoomInventoryAlerts, name: NameInventoryAlert},
}

// Classifier decodes raw broker payloads and maps them to events.
type Classifier struct {
	clock clockwork.Clock
}

// NewClassifier creates a classifier. The clock supplies enrichment
// timestamps for alerts that arrive without one.
func NewClassifier(clock clockwork.Clock) *Classifier {
	return &Classifier{clock: clock}
}

// Classify decodes payload as a JSON object and routes it by channel.
// Update payloads pass through untouched; alert payloads are enriched.
// Decode failures and unknown channels return an error and no event.
func (c *Classifier) Classify(channel Channel, payload []byte) (Event, error) {
	r, ok := routes[channel]
	if !ok {
		return Event{}, ErrUnknownChannel
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return Event{}, fmt.Errorf("events: decode payload on %q: %w", channel, err)
	}

	if r.kind == KindAlert {
		data = c.enrichAlert(data)
	}

	return Event{Kind: r.kind, Name: r.name, Room: r.room, Data: data}, nil
}
