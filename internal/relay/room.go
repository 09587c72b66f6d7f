package relay

import (
	"sort"
	"time"
)

// Room holds the state of one named room: its member set and the pending
// read receipts of unreachable recipients. Rooms are never touched outside
// the relay mutex.
type Room struct {
	CreatedAt time.Time

	members map[string]struct{}
	pending map[string][]ReadReceiptOut // recipient conn id -> undelivered receipts
}

func newRoom() *Room {
	return &Room{
		CreatedAt: time.Now(),
		members:   map[string]struct{}{},
		pending:   map[string][]ReadReceiptOut{},
	}
}

func (r *Room) Has(connID string) bool {
	_, ok := r.members[connID]
	return ok
}

func (r *Room) Add(connID string) { r.members[connID] = struct{}{} }

func (r *Room) Remove(connID string) { delete(r.members, connID) }

func (r *Room) Size() int { return len(r.members) }

// Others returns every member except the given connection, sorted for
// deterministic iteration.
func (r *Room) Others(except string) []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != except {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// BufferReceipt queues a read receipt for a recipient that is not currently
// reachable.
func (r *Room) BufferReceipt(recipient string, rec ReadReceiptOut) {
	r.pending[recipient] = append(r.pending[recipient], rec)
}

// PendingReceipts returns a copy of the recipient's undelivered receipts.
func (r *Room) PendingReceipts(recipient string) []ReadReceiptOut {
	queue := r.pending[recipient]
	if len(queue) == 0 {
		return nil
	}
	out := make([]ReadReceiptOut, len(queue))
	copy(out, queue)
	return out
}

// RoomTable owns every Room record, keyed by room id. Callers reject empty
// ids before reaching it; the table itself does no validation.
type RoomTable struct {
	rooms map[string]*Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: map[string]*Room{}}
}

// GetOrCreate returns the room, creating it with an empty member set if
// absent. The second return reports whether a new room was created.
func (t *RoomTable) GetOrCreate(roomID string) (*Room, bool) {
	if room, ok := t.rooms[roomID]; ok {
		return room, false
	}
	room := newRoom()
	t.rooms[roomID] = room
	return room, true
}

func (t *RoomTable) Get(roomID string) (*Room, bool) {
	room, ok := t.rooms[roomID]
	return room, ok
}

func (t *RoomTable) Delete(roomID string) { delete(t.rooms, roomID) }

func (t *RoomTable) Len() int { return len(t.rooms) }

// IDs returns all room ids, sorted.
func (t *RoomTable) IDs() []string {
	out := make([]string, 0, len(t.rooms))
	for id := range t.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
