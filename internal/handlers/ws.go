package handlers

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/joichat/relay/internal/relay"
)

// WS serves the websocket endpoint. Each upgraded connection gets a UUID
// identity, is registered with the relay, and is torn down when its read
// pump exits.
type WS struct {
	Relay         *relay.Relay
	Log           *slog.Logger
	MaxFrameBytes int64
}

// Serve GET /ws
func (h *WS) Serve(c *websocket.Conn) {
	if h.MaxFrameBytes > 0 {
		c.SetReadLimit(h.MaxFrameBytes)
	}
	client := &relay.Client{
		ID:   uuid.NewString(),
		Conn: c,
		Send: make(chan []byte, 16),
	}
	h.Log.Debug("ws.upgrade", "conn", client.ID, "remote", c.RemoteAddr().String())
	h.Relay.Connect(client)
	go client.WritePump()
	client.ReadPump(h.Relay)
}
