package relay

import (
	"bytes"
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventImage        = "image"
	EventMessageRead  = "message-read"
	EventEditMessage  = "edit-message"
	EventCallStart    = "audio-call-start"
	EventCallEnd      = "audio-call-end"
	EventOffer        = "audio-offer"
	EventAnswer       = "audio-answer"
	EventICECandidate = "ice-candidate"
)

// Outbound event names.
const (
	EventRoomJoined       = "room-joined"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventChatMessage      = "chat-message"
	EventReceiveImage     = "receive-image"
	EventMessageEdited    = "message-edited"
	EventCallStarted      = "audio-call-started"
	EventCallEnded        = "audio-call-ended"
	EventError            = "error"
)

// Envelope frames every event on the wire, both directions:
// {"event": "send-message", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessageIn is the send-message payload. Client-supplied id and
// timestamp pass through untouched, so timestamp stays raw (clients send
// numbers or strings).
type ChatMessageIn struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ChatMessageOut is delivered to every other room member.
type ChatMessageOut struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
	Sender    string          `json:"sender"`
}

// ImageIn carries only the fields the relay validates; the full payload is
// forwarded as-is in ImgData.
type ImageIn struct {
	ID        string          `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type ImageOut struct {
	ID        string          `json:"id"`
	ImgData   json.RawMessage `json:"imgData"`
	IsMe      bool            `json:"isMe"`
	Timestamp json.RawMessage `json:"timestamp"`
	Sender    string          `json:"sender"`
}

type ReadReceiptIn struct {
	MessageID string          `json:"messageId"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ReadReceiptOut is delivered to each other member individually, or buffered
// in the room when the recipient is unreachable.
type ReadReceiptOut struct {
	MessageID string          `json:"messageId"`
	Timestamp json.RawMessage `json:"timestamp"`
	ReaderID  string          `json:"readerId"`
}

// EditMessageIn targets an explicit room rather than the sender's current
// assignment.
type EditMessageIn struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
	RoomID    string `json:"roomId"`
}

type EditMessageOut struct {
	MessageID string    `json:"messageId"`
	NewText   string    `json:"newText"`
	Timestamp time.Time `json:"timestamp"`
}

type CallSignalIn struct {
	RoomID string `json:"roomId"`
}

type CallStartedOut struct {
	UserID    string    `json:"userId"`
	StartedBy string    `json:"startedBy"` // "me" to the caller, "them" to peers
	Timestamp time.Time `json:"timestamp"`
}

type CallEndedOut struct {
	UserID    string    `json:"userId"`
	EndedBy   string    `json:"endedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// signalIn covers the three WebRTC signaling events; each requires roomId
// plus its own opaque payload field.
type signalIn struct {
	RoomID    string          `json:"roomId"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

type OfferOut struct {
	Offer json.RawMessage `json:"offer"`
	From  string          `json:"from"`
}

type AnswerOut struct {
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

type CandidateOut struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type RoomJoinedOut struct {
	RoomID    string `json:"roomId"`
	UserCount int    `json:"userCount"`
}

// ErrorOut is sent to the originating connection only.
type ErrorOut struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

var jsonNull = []byte("null")

// present reports whether a raw client-supplied field was set to a non-null
// value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

// encode frames an event payload for the wire.
func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
