package relay

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/joichat/relay/internal/metrics"
)

// Dispatch validates one inbound event and routes it. Failures are reported
// back to the originating connection only, as an error event tagged with the
// inbound event name; peer state is never touched by a failed operation.
func (r *Relay) Dispatch(connID string, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[connID]
	if !ok {
		return
	}

	var (
		err       error
		errRoomID string
	)
	switch env.Event {
	case EventJoinRoom:
		var roomID string
		if uerr := json.Unmarshal(env.Data, &roomID); uerr != nil {
			err = &ValidationError{Reason: "invalid room ID format"}
		} else {
			errRoomID = roomID
			err = r.joinLocked(connID, roomID)
		}
	case EventSendMessage:
		err = r.routeChatLocked(e, env.Data)
	case EventImage:
		err = r.routeImageLocked(e, env.Data)
	case EventMessageRead:
		err = r.routeReadLocked(e, env.Data)
	case EventEditMessage:
		err = r.routeEditLocked(e, env.Data)
	case EventCallStart, EventCallEnd:
		err = r.routeCallLocked(e, env.Event, env.Data)
	case EventOffer, EventAnswer, EventICECandidate:
		err = r.routeSignalLocked(e, env.Event, env.Data)
	default:
		err = &ValidationError{Reason: fmt.Sprintf("unknown event type: %q", env.Event)}
	}

	if err != nil {
		metrics.EventErrors.WithLabelValues(env.Event, errorKind(err)).Inc()
		r.log.Warn("relay.event.rejected", "event", env.Event, "conn", connID, "err", err)
		r.emitLocked(connID, EventError, ErrorOut{Type: env.Event, Message: err.Error(), RoomID: errRoomID})
		return
	}
	metrics.Events.WithLabelValues(env.Event).Inc()
}

// currentRoomLocked resolves the sender's tracked room for events that scope
// to it.
func (r *Relay) currentRoomLocked(e *entry) (*Room, error) {
	if !e.state.joined {
		return nil, &StateError{Reason: "user not in a room"}
	}
	room, ok := r.rooms.Get(e.state.roomID)
	if !ok {
		return nil, &StateError{Reason: "room does not exist"}
	}
	return room, nil
}

func (r *Relay) routeChatLocked(e *entry, data json.RawMessage) error {
	var msg ChatMessageIn
	if err := json.Unmarshal(data, &msg); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	switch {
	case msg.ID == "":
		return errMissingField("id")
	case msg.Text == "":
		return errMissingField("text")
	case !present(msg.Timestamp):
		return errMissingField("timestamp")
	}
	room, err := r.currentRoomLocked(e)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(msg.Text) > r.maxChars {
		return errTooLong(r.maxChars)
	}

	r.broadcastLocked(room, e.client.ID, EventChatMessage, ChatMessageOut{
		ID:        msg.ID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		Sender:    e.client.ID,
	})
	return nil
}

func (r *Relay) routeImageLocked(e *entry, data json.RawMessage) error {
	var img ImageIn
	if err := json.Unmarshal(data, &img); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	switch {
	case img.ID == "":
		return errMissingField("id")
	case !present(img.Timestamp):
		return errMissingField("timestamp")
	}
	room, err := r.currentRoomLocked(e)
	if err != nil {
		return err
	}

	// The full inbound payload is forwarded untouched as imgData.
	r.broadcastLocked(room, e.client.ID, EventReceiveImage, ImageOut{
		ID:        img.ID,
		ImgData:   data,
		IsMe:      false,
		Timestamp: img.Timestamp,
		Sender:    e.client.ID,
	})
	return nil
}

// routeReadLocked delivers a read receipt to each other member individually;
// receipts for unreachable members are buffered in the room instead.
func (r *Relay) routeReadLocked(e *entry, data json.RawMessage) error {
	var in ReadReceiptIn
	if err := json.Unmarshal(data, &in); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	switch {
	case in.MessageID == "":
		return errMissingField("messageId")
	case !present(in.Timestamp):
		return errMissingField("timestamp")
	}
	room, err := r.currentRoomLocked(e)
	if err != nil {
		return err
	}

	rec := ReadReceiptOut{
		MessageID: in.MessageID,
		Timestamp: in.Timestamp,
		ReaderID:  e.client.ID,
	}
	for _, id := range room.Others(e.client.ID) {
		if _, ok := r.clients[id]; ok {
			r.emitLocked(id, EventMessageRead, rec)
			continue
		}
		room.BufferReceipt(id, rec)
		metrics.PendingReceipts.Inc()
		r.log.Debug("receipt.buffered", "room", e.state.roomID, "recipient", id, "message", in.MessageID)
	}
	return nil
}

// routeEditLocked fans out to the explicit target room; the sender need not
// have joined it. An unknown room simply has no recipients.
func (r *Relay) routeEditLocked(e *entry, data json.RawMessage) error {
	var in EditMessageIn
	if err := json.Unmarshal(data, &in); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	switch {
	case in.MessageID == "":
		return errMissingField("messageId")
	case in.NewText == "":
		return errMissingField("newText")
	case in.RoomID == "":
		return errMissingField("roomId")
	}
	if utf8.RuneCountInString(in.NewText) > r.maxChars {
		return errTooLong(r.maxChars)
	}
	room, ok := r.rooms.Get(in.RoomID)
	if !ok {
		return nil
	}

	r.broadcastLocked(room, e.client.ID, EventMessageEdited, EditMessageOut{
		MessageID: in.MessageID,
		NewText:   in.NewText,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// routeCallLocked broadcasts call lifecycle to the room and echoes to the
// caller with the role tag flipped ("me" instead of "them").
func (r *Relay) routeCallLocked(e *entry, event string, data json.RawMessage) error {
	var in CallSignalIn
	if err := json.Unmarshal(data, &in); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	if in.RoomID == "" {
		return errMissingField("roomId")
	}
	room, ok := r.rooms.Get(in.RoomID)
	now := time.Now().UTC()

	if event == EventCallStart {
		if ok {
			r.broadcastLocked(room, e.client.ID, EventCallStarted, CallStartedOut{
				UserID: e.client.ID, StartedBy: "them", Timestamp: now,
			})
		}
		r.emitLocked(e.client.ID, EventCallStarted, CallStartedOut{
			UserID: e.client.ID, StartedBy: "me", Timestamp: now,
		})
		return nil
	}

	if ok {
		r.broadcastLocked(room, e.client.ID, EventCallEnded, CallEndedOut{
			UserID: e.client.ID, EndedBy: "them", Timestamp: now,
		})
	}
	r.emitLocked(e.client.ID, EventCallEnded, CallEndedOut{
		UserID: e.client.ID, EndedBy: "me", Timestamp: now,
	})
	return nil
}

// routeSignalLocked relays WebRTC signaling payloads as opaque JSON to every
// other member of the explicit target room.
func (r *Relay) routeSignalLocked(e *entry, event string, data json.RawMessage) error {
	var in signalIn
	if err := json.Unmarshal(data, &in); err != nil {
		return &ValidationError{Reason: "malformed payload"}
	}
	if in.RoomID == "" {
		return errMissingField("roomId")
	}

	var (
		field   string
		payload json.RawMessage
	)
	switch event {
	case EventOffer:
		field, payload = "offer", in.Offer
	case EventAnswer:
		field, payload = "answer", in.Answer
	case EventICECandidate:
		field, payload = "candidate", in.Candidate
	}
	if !present(payload) {
		return errMissingField(field)
	}
	room, ok := r.rooms.Get(in.RoomID)
	if !ok {
		return nil
	}

	from := e.client.ID
	switch event {
	case EventOffer:
		r.broadcastLocked(room, from, EventOffer, OfferOut{Offer: payload, From: from})
	case EventAnswer:
		r.broadcastLocked(room, from, EventAnswer, AnswerOut{Answer: payload, From: from})
	case EventICECandidate:
		r.broadcastLocked(room, from, EventICECandidate, CandidateOut{Candidate: payload, From: from})
	}
	return nil
}
