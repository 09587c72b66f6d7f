package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (nopConn) WriteMessage(int, []byte) error    { return nil }
func (nopConn) Close() error                      { return nil }

func newTestRelay(opts Options) *Relay {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
}

func newTestClient(id string) *Client {
	return &Client{ID: id, Conn: nopConn{}, Send: make(chan []byte, 64)}
}

// connect registers a fresh client and returns it.
func connect(r *Relay, id string) *Client {
	c := newTestClient(id)
	r.Connect(c)
	return c
}

// recv pops the next buffered frame, if any.
func recv(t *testing.T, c *Client) (Envelope, bool) {
	t.Helper()
	select {
	case data := <-c.Send:
		if data == nil {
			return Envelope{}, false
		}
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env, true
	default:
		return Envelope{}, false
	}
}

// recvEvent asserts the next frame is the named event and decodes its data
// into out.
func recvEvent(t *testing.T, c *Client, event string, out any) {
	t.Helper()
	env, ok := recv(t, c)
	require.True(t, ok, "expected %q event, got nothing", event)
	require.Equal(t, event, env.Event)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

// recvNothing asserts the client's buffer is empty.
func recvNothing(t *testing.T, c *Client) {
	t.Helper()
	env, ok := recv(t, c)
	require.False(t, ok, "expected no event, got %q", env.Event)
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

// dispatch frames a payload and feeds it through the router.
func dispatch(t *testing.T, r *Relay, connID, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	r.Dispatch(connID, Envelope{Event: event, Data: data})
}

// roomSize reads a room's member count through the directory.
func roomSize(r *Relay, roomID string) (int, bool) {
	for _, info := range r.RoomDirectory() {
		if info.ID == roomID {
			return info.UserCount, true
		}
	}
	return 0, false
}

const testGrace = 20 * time.Millisecond
