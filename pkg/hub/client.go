package hub

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Dashboard clients only send control frames.
	maxMessageSize = 4 * 1024
)

// Client is a single websocket connection attached to a hub.
type Client struct {
	ID   uuid.UUID
	Addr string

	hub  *Hub
	conn *websocket.Conn
	send chan Message

	connectedAt time.Time
	skipped     atomic.Uint64
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:          uuid.New(),
		hub:         h,
		conn:        conn,
		send:        make(chan Message, clientBuffer),
		connectedAt: time.Now(),
	}
	if conn != nil && conn.Conn != nil {
		c.Addr = conn.RemoteAddr().String()
	}
	return c
}

// NewClient registers a client for conn. It returns nil if the hub has stopped.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	c := newClient(h, conn)
	select {
	case h.register <- c:
		return c
	case <-h.done:
		return nil
	}
}

// Skipped returns the number of frames this client was too slow to receive.
func (c *Client) Skipped() uint64 {
	return c.skipped.Load()
}

// Run pumps messages to the connection until either side goes away.
// It blocks, so call it from the websocket handler.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump watches for pongs and disconnects; inbound data is discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes. When several frames are queued only the newest
// is written, so a viewer that stalls resumes on the live image.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			pending := []Message{msg}
			if ok && msg.Kind == KindFrame {
				pending, ok = c.coalesce(msg)
			}
			if !ok {
				pending = pending[:0]
			}
			for _, m := range pending {
				if err := c.write(m); err != nil {
					return
				}
			}
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// coalesce drains frames queued behind frame and returns the newest, followed
// by the JSON message that ended the drain if any. ok is false once the send
// channel is closed.
func (c *Client) coalesce(frame Message) (out []Message, ok bool) {
	for {
		select {
		case next, open := <-c.send:
			if !open {
				return []Message{frame}, false
			}
			if next.Kind != KindFrame {
				return []Message{frame, next}, true
			}
			c.skipped.Add(1)
			frame = next
		default:
			return []Message{frame}, true
		}
	}
}

func (c *Client) write(msg Message) error {
	wsType := websocket.TextMessage
	if msg.Kind == KindFrame {
		wsType = websocket.BinaryMessage
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(wsType, msg.Data)
}
