package ws

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"pokerplan/internal/services/room"
)

// clientConn wraps one websocket connection. Writes are serialized so the
// reader ack path and the hub fan-out never interleave frames.
type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.rawConn, v)
}

// Deliver implements Subscriber: each broadcast snapshot goes out as a
// complete room inside a "room-updated" envelope.
func (c *clientConn) Deliver(snap *room.Room) error {
	return c.writeJSON(map[string]any{
		"event": EventRoomUpdated,
		"body":  snap,
	})
}
