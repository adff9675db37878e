package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/sachinkaru123/inventory-bridge/internal/events"
	"github.com/sachinkaru123/inventory-bridge/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second  // actor command timeout
	stopTimeout    = 10 * time.Second // graceful shutdown timeout
)

// wireFrame is the envelope sent to clients for every dispatched event.
type wireFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// client is one connected WebSocket session. Room memberships live here and
// die with the connection; nothing survives an unregister.
type client struct {
	connection *websocket.Conn
	writer     *clientWriter
	rooms      map[events.Room]bool
}

// bridgeCmd is the command interface for the Bridge actor.
type bridgeCmd interface{ isBridgeCmd() }

type baseBridgeCmd struct{}

func (baseBridgeCmd) isBridgeCmd() {}

type registerCmd struct {
	baseBridgeCmd
	clientID     uuid.UUID
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseBridgeCmd
	clientID uuid.UUID
}

type joinCmd struct {
	baseBridgeCmd
	clientID uuid.UUID
	room     events.Room
}

type leaveCmd struct {
	baseBridgeCmd
	clientID uuid.UUID
	room     events.Room
}

type dispatchCmd struct {
	baseBridgeCmd
	event events.Event
}

type clientCountCmd struct {
	baseBridgeCmd
	replyChannel chan int
}

type roomCountCmd struct {
	baseBridgeCmd
	room         events.Room
	replyChannel chan int
}

type stopCmd struct {
	baseBridgeCmd
}

// Bridge fans classified events out to connected WebSocket clients.
//
// Every event is emitted twice: once to every connected client, then again to
// the members of the event's target room. Room members therefore see each
// matching event twice; that duplication is part of the delivery contract and
// must not be collapsed here.
//
// Single goroutine + command channel (no mutexes): register, unregister,
// join, leave, and dispatch all run to completion one at a time, so no
// dispatch pass ever observes a half-applied membership change.
type Bridge struct {
	cmdCh       chan bridgeCmd
	clock       clockwork.Clock
	clients     map[uuid.UUID]*client
	done        chan struct{}
	stopTimeout time.Duration
	maxClients  int
}

// NewBridge creates a bridge and starts its actor goroutine.
// maxClients limits concurrent connections (prevents resource exhaustion).
func NewBridge(clock clockwork.Clock, maxClients int) *Bridge {
	b := &Bridge{
		cmdCh:       make(chan bridgeCmd, 256),
		clock:       clock,
		clients:     make(map[uuid.UUID]*client),
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
		maxClients:  maxClients,
	}
	go b.run()
	return b
}

// Register adds a connected client. Returns an error if the client limit is
// reached, in which case the connection has already been closed.
func (b *Bridge) Register(clientID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{clientID: clientID, connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client, closing its connection and discarding its
// room memberships.
func (b *Bridge) Unregister(clientID uuid.UUID) {
	b.cmdCh <- unregisterCmd{clientID: clientID}
}

// Join adds the client to a room. Joining an already-joined room is a no-op.
func (b *Bridge) Join(clientID uuid.UUID, room events.Room) {
	b.cmdCh <- joinCmd{clientID: clientID, room: room}
}

// Leave removes the client from a room. Leaving a room the client is not in
// is a no-op.
func (b *Bridge) Leave(clientID uuid.UUID, room events.Room) {
	b.cmdCh <- leaveCmd{clientID: clientID, room: room}
}

// Dispatch delivers an event to all clients and again to the members of the
// event's room.
func (b *Bridge) Dispatch(event events.Event) {
	b.cmdCh <- dispatchCmd{event: event}
}

// ClientCount returns the number of connected clients.
// Returns -1 if the command times out.
func (b *Bridge) ClientCount() int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// RoomCount returns the number of clients currently in a room.
// Returns -1 if the command times out.
func (b *Bridge) RoomCount(room events.Room) int {
	replyCh := make(chan int, 1)
	b.cmdCh <- roomCountCmd{room: room, replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("RoomCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the bridge, closing all client connections.
// Blocks until the actor goroutine has exited or timeout is reached.
func (b *Bridge) Stop() {
	b.cmdCh <- stopCmd{}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Bridge stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Bridge stop timeout exceeded, forcing exit", "timeout", b.stopTimeout)
		metrics.StopTimeoutsTotal.Inc()
		close(b.done)
	}
}

func (b *Bridge) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bridge panic recovered", "panic", r)
			b.closeAllClients("bridge panic")
		}
	}()

	defer close(b.done)

	// Track command channel depth every second
	depthTicker := b.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			metrics.CommandChannelDepth.Set(float64(depth))

			if depth > 200 { // 80% of 256
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.clientID)
			case joinCmd:
				b.handleJoin(c)
			case leaveCmd:
				b.handleLeave(c)
			case dispatchCmd:
				b.handleDispatch(c)
			case clientCountCmd:
				c.replyChannel <- len(b.clients)
			case roomCountCmd:
				c.replyChannel <- b.countRoom(c.room)
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Bridge received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Bridge) handleRegister(c registerCmd) {
	if len(b.clients) >= b.maxClients {
		slog.Warn("Rejecting client: max clients reached", "client_id", c.clientID.String(), "max_clients", b.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", b.maxClients)
		return
	}

	b.clients[c.clientID] = &client{
		connection: c.connection,
		writer:     newClientWriter(c.connection, b.clock),
		rooms:      make(map[events.Room]bool),
	}

	metrics.ConnectedClients.Set(float64(len(b.clients)))

	slog.Info("Client connected", "client_id", c.clientID.String(), "total_clients", len(b.clients))
	c.errorChannel <- nil
}

func (b *Bridge) handleUnregister(clientID uuid.UUID) {
	cl, exists := b.clients[clientID]
	if !exists {
		return
	}

	cl.writer.stop()
	for room := range cl.rooms {
		metrics.RoomMembers.WithLabelValues(string(room)).Dec()
	}
	delete(b.clients, clientID)

	metrics.ConnectedClients.Set(float64(len(b.clients)))

	slog.Info("Client disconnected", "client_id", clientID.String(), "remaining_clients", len(b.clients))
}

func (b *Bridge) handleJoin(c joinCmd) {
	cl, exists := b.clients[c.clientID]
	if !exists {
		return
	}
	if cl.rooms[c.room] {
		return
	}
	cl.rooms[c.room] = true
	metrics.RoomMembers.WithLabelValues(string(c.room)).Inc()
	slog.Debug("Client joined room", "client_id", c.clientID.String(), "room", string(c.room))
}

func (b *Bridge) handleLeave(c leaveCmd) {
	cl, exists := b.clients[c.clientID]
	if !exists {
		return
	}
	if !cl.rooms[c.room] {
		return
	}
	delete(cl.rooms, c.room)
	metrics.RoomMembers.WithLabelValues(string(c.room)).Dec()
	slog.Debug("Client left room", "client_id", c.clientID.String(), "room", string(c.room))
}

func (b *Bridge) handleDispatch(c dispatchCmd) {
	frame, err := json.Marshal(wireFrame{Event: c.event.Name, Data: c.event.Data})
	if err != nil {
		slog.Error("Failed to marshal event frame", "event", c.event.Name, "error", err)
		return
	}

	metrics.EventsDispatchedTotal.WithLabelValues(c.event.Name).Inc()

	// First pass: every connected client, regardless of room membership.
	slow := make(map[uuid.UUID]bool)
	for clientID, cl := range b.clients {
		select {
		case cl.writer.sendChannel <- frame:
			metrics.FramesSentTotal.WithLabelValues("global").Inc()
		default:
			slow[clientID] = true
		}
	}

	// Second pass: the same frame again, scoped to the event's room. Room
	// members receive the event twice per the delivery contract.
	for clientID, cl := range b.clients {
		if !cl.rooms[c.event.Room] || slow[clientID] {
			continue
		}
		select {
		case cl.writer.sendChannel <- frame:
			metrics.FramesSentTotal.WithLabelValues("room").Inc()
		default:
			slow[clientID] = true
		}
	}

	for clientID := range slow {
		slog.Warn("Disconnecting slow client", "client_id", clientID.String())
		metrics.SlowClientsEvicted.Inc()
		b.handleUnregister(clientID)
	}
}

func (b *Bridge) countRoom(room events.Room) int {
	count := 0
	for _, cl := range b.clients {
		if cl.rooms[room] {
			count++
		}
	}
	return count
}

func (b *Bridge) handleStop() {
	slog.Info("Bridge shutting down", "clients", len(b.clients))
	b.closeAllClients("Server shutting down")
	slog.Info("Bridge shutdown complete")
}

// closeAllClients closes all client connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (b *Bridge) closeAllClients(reason string) {
	for clientID, cl := range b.clients {
		cl.writer.stopGraceful(reason)
		for room := range cl.rooms {
			metrics.RoomMembers.WithLabelValues(string(room)).Dec()
		}
		delete(b.clients, clientID)
	}
	metrics.ConnectedClients.Set(0)
}
