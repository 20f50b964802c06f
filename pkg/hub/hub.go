package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name   string
	logger *slog.Logger

	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Guards clients and retained for readers outside Run
	mu       sync.RWMutex
	retained *Message

	running atomic.Bool
	dropped atomic.Uint64
	stop    sync.Once
}

// New creates a hub. name identifies it in logs.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			retained := h.retained
			h.mu.Unlock()
			if retained != nil {
				client.send <- *retained
			}
			h.logger.Debug("client connected", "id", client.ID, "addr", client.Addr, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected",
				"id", client.ID,
				"connected_for", time.Since(client.connectedAt).Round(time.Second),
				"frames_skipped", client.Skipped(),
				"clients", count,
			)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if msg.Retain {
				m := msg
				h.retained = &m
			}
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					if msg.Kind == KindFrame {
						client.skipped.Add(1)
						continue
					}
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "id", client.ID, "addr", client.Addr)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) shutdown() {
	h.stop.Do(func() {
		h.running.Store(false)
		close(h.done)

		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
	})
}

// Broadcast queues msg for every connected client. Messages are dropped
// when the queue is full or the hub has stopped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			h.logger.Warn("broadcast queue full, dropping messages", "dropped", n)
		}
	}
}

// BroadcastJSON encodes v and broadcasts it. When retain is set, clients
// connecting later receive the message on arrival.
func (h *Hub) BroadcastJSON(v any, retain bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := JSON(data)
	msg.Retain = retain
	h.Broadcast(msg)
	return nil
}

// BroadcastFrame broadcasts an encoded camera frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(Frame(jpeg))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
