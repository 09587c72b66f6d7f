package relay

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
)

// Client wraps one live connection. The relay never blocks on a client: the
// Send channel is written with a non-blocking select and drained by WritePump.
type Client struct {
	ID   string
	Conn ConnLike
	Send chan []byte
}

// ConnLike is the slice of the websocket connection the relay needs; tests
// substitute their own.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// ReadPump decodes inbound frames and hands them to the relay until the
// connection drops. Undecodable frames are skipped.
func (c *Client) ReadPump(r *Relay) {
	defer r.Disconnect(c.ID)
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		r.Dispatch(c.ID, env)
	}
}

// WritePump drains the Send channel onto the wire. It exits when the relay
// closes the channel on disconnect.
func (c *Client) WritePump() {
	for data := range c.Send {
		_ = c.Conn.WriteMessage(websocket.TextMessage, data)
	}
}
