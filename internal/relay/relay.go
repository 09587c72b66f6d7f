// Package relay implements the room membership state machine and the
// message-routing fan-out engine behind the websocket endpoint. All state is
// in-memory and scoped to the process.
package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joichat/relay/internal/metrics"
)

// Defaults match the deployed service.
const (
	DefaultRoomCapacity    = 10
	DefaultEmptyRoomGrace  = 5 * time.Second
	DefaultMaxMessageChars = 1000
)

// Options tune the relay; zero values fall back to the defaults above.
type Options struct {
	RoomCapacity    int
	EmptyRoomGrace  time.Duration
	MaxMessageChars int
}

// roomState is the explicit per-connection join state: either unjoined or in
// exactly one room.
type roomState struct {
	joined bool
	roomID string
}

func unjoined() roomState { return roomState{} }

func inRoom(roomID string) roomState { return roomState{joined: true, roomID: roomID} }

// entry is one connection registry record.
type entry struct {
	client *Client
	state  roomState
}

// Relay owns the connection registry and the room table. Every logical
// operation (connect, join, route, disconnect) runs under one mutex, so no
// two mutations ever interleave; the only delayed work is empty-room
// deletion, which re-validates emptiness when its timer fires.
type Relay struct {
	log *slog.Logger

	capacity int
	grace    time.Duration
	maxChars int

	mu           sync.Mutex
	clients      map[string]*entry
	rooms        *RoomTable
	deleteTimers map[string]*time.Timer
}

func New(log *slog.Logger, opts Options) *Relay {
	if opts.RoomCapacity <= 0 {
		opts.RoomCapacity = DefaultRoomCapacity
	}
	if opts.EmptyRoomGrace <= 0 {
		opts.EmptyRoomGrace = DefaultEmptyRoomGrace
	}
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = DefaultMaxMessageChars
	}
	return &Relay{
		log:          log,
		capacity:     opts.RoomCapacity,
		grace:        opts.EmptyRoomGrace,
		maxChars:     opts.MaxMessageChars,
		clients:      map[string]*entry{},
		rooms:        NewRoomTable(),
		deleteTimers: map[string]*time.Timer{},
	}
}

// Connect registers a new connection with no room assignment.
func (r *Relay) Connect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = &entry{client: c, state: unjoined()}
	metrics.Connections.Inc()
	r.log.Info("ws.connect", "conn", c.ID)
}

// Disconnect removes the connection from its room (if any) and from the
// registry, then closes its send channel. An empty room is scheduled for
// deferred deletion.
func (r *Relay) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[connID]
	if !ok {
		return
	}
	if e.state.joined {
		r.leaveLocked(connID, e.state.roomID, true)
	}
	delete(r.clients, connID)
	close(e.client.Send)
	metrics.Connections.Dec()
	r.log.Info("ws.disconnect", "conn", connID)
}

// Join moves the connection into roomID, implicitly leaving its previous
// room. A full room rejects the join and leaves the previous state intact.
func (r *Relay) Join(connID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(connID, roomID)
}

func (r *Relay) joinLocked(connID, roomID string) error {
	e, ok := r.clients[connID]
	if !ok {
		return &StateError{Reason: "unknown connection"}
	}
	if roomID == "" {
		return &ValidationError{Reason: "invalid room ID format"}
	}

	// Capacity is checked before any mutation so a rejected join is a
	// no-op. A full room always exists already, so nothing was created.
	room, created := r.rooms.GetOrCreate(roomID)
	if !room.Has(connID) && room.Size() >= r.capacity {
		return &CapacityError{RoomID: roomID, Limit: r.capacity}
	}
	if created {
		metrics.Rooms.Inc()
		r.log.Info("room.created", "room", roomID)
	}

	// Leaving on a room switch is transport-level only: the old room's
	// members get no application broadcast.
	if e.state.joined {
		r.leaveLocked(connID, e.state.roomID, false)
	}

	room.Add(connID)
	e.state = inRoom(roomID)
	if t, ok := r.deleteTimers[roomID]; ok {
		t.Stop()
		delete(r.deleteTimers, roomID)
	}

	r.broadcastLocked(room, connID, EventUserConnected, connID)
	r.emitLocked(connID, EventRoomJoined, RoomJoinedOut{RoomID: roomID, UserCount: room.Size()})
	r.log.Info("room.join", "conn", connID, "room", roomID, "users", room.Size())
	return nil
}

// leaveLocked removes the connection from the room, optionally broadcasting
// user-disconnected to the remaining members, and schedules deletion when
// the room empties.
func (r *Relay) leaveLocked(connID, roomID string, broadcast bool) {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return
	}
	room.Remove(connID)
	if broadcast {
		r.broadcastLocked(room, connID, EventUserDisconnected, connID)
	}
	r.log.Info("room.leave", "conn", connID, "room", roomID, "users", room.Size())
	if room.Size() == 0 {
		r.scheduleDeleteLocked(roomID)
	}
}

func (r *Relay) scheduleDeleteLocked(roomID string) {
	if _, ok := r.deleteTimers[roomID]; ok {
		return
	}
	r.deleteTimers[roomID] = time.AfterFunc(r.grace, func() {
		r.reapRoom(roomID)
	})
}

// reapRoom fires after the grace window. Membership is re-checked under the
// lock: a rejoin that raced the timer keeps the room alive.
func (r *Relay) reapRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deleteTimers, roomID)
	room, ok := r.rooms.Get(roomID)
	if !ok || room.Size() > 0 {
		return
	}
	r.rooms.Delete(roomID)
	metrics.Rooms.Dec()
	r.log.Info("room.deleted", "room", roomID)
}

// CurrentRoom reports the connection's room assignment, if any.
func (r *Relay) CurrentRoom(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[connID]
	if !ok || !e.state.joined {
		return "", false
	}
	return e.state.roomID, true
}

// ClientCount returns the number of registered connections.
func (r *Relay) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// RoomInfo is a read-only room directory entry.
type RoomInfo struct {
	ID        string    `json:"roomId"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomDirectory snapshots the room table, sorted by room id.
func (r *Relay) RoomDirectory() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomInfo, 0, r.rooms.Len())
	for _, id := range r.rooms.IDs() {
		room, _ := r.rooms.Get(id)
		out = append(out, RoomInfo{ID: id, UserCount: room.Size(), CreatedAt: room.CreatedAt})
	}
	return out
}

// PendingReceipts returns the undelivered read receipts buffered in a room
// for one recipient.
func (r *Relay) PendingReceipts(roomID, recipient string) []ReadReceiptOut {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return nil
	}
	return room.PendingReceipts(recipient)
}

// emitLocked pushes one event to one connection. Emission is fire-and-forget:
// a full send buffer drops the frame rather than blocking the relay.
func (r *Relay) emitLocked(connID, event string, payload any) {
	e, ok := r.clients[connID]
	if !ok {
		return
	}
	data, err := encode(event, payload)
	if err != nil {
		r.log.Error("relay.encode", "event", event, "err", err)
		return
	}
	select {
	case e.client.Send <- data:
	default:
	}
}

// broadcastLocked pushes one event to every room member except one.
func (r *Relay) broadcastLocked(room *Room, except, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		r.log.Error("relay.encode", "event", event, "err", err)
		return
	}
	for _, id := range room.Others(except) {
		e, ok := r.clients[id]
		if !ok {
			continue
		}
		select {
		case e.client.Send <- data:
		default:
		}
	}
}
