// Package hub provides connection management for WebSocket clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	ready bool
	hub   *Hub
	mu    sync.Mutex
}

// Snapshot is a serialized state revision fanned out to ready connections.
type Snapshot struct {
	Rev  uint64
	Data []byte
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Channels for unregistration and handshake completion
	unregister chan *Connection
	ready      chan *Connection

	// Broadcast channel for state snapshots
	broadcast chan *Snapshot

	// latest is the newest snapshot seen; owned by Run.
	latest *Snapshot

	logger *slog.Logger
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	// broadcast is unbuffered so a snapshot is applied before a later MarkReady.
	return &Hub{
		connections: make(map[string]*Connection),
		unregister:  make(chan *Connection),
		ready:       make(chan *Connection),
		broadcast:   make(chan *Snapshot),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. When ctx is done every connection's send
// channel is closed and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("connection unregistered", "connection_id", conn.ID)

		case conn := <-h.ready:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok && !conn.ready {
				conn.ready = true
				if h.latest != nil {
					h.deliver(conn, h.latest.Data)
				}
			}
			h.mu.Unlock()

		case snap := <-h.broadcast:
			if h.latest != nil && snap.Rev <= h.latest.Rev {
				continue
			}
			h.latest = snap
			h.mu.Lock()
			for _, conn := range h.connections {
				if conn.ready {
					h.deliver(conn, snap.Data)
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues data on conn. When the buffer is full the snapshot is
// dropped for that connection only; it will get the next newer one.
// Callers hold h.mu.
func (h *Hub) deliver(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		h.logger.Warn("connection buffer full, dropping snapshot", "connection_id", conn.ID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	for id, conn := range h.connections {
		delete(h.connections, id)
		close(conn.Send)
	}
	h.mu.Unlock()
	close(h.done)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// NewConnection creates a new connection. It still needs to be registered.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.connections[conn.ID] = conn
	h.logger.Debug("connection registered", "connection_id", conn.ID)
	return nil
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// MarkReady starts snapshot delivery to conn, beginning with the latest one.
func (h *Hub) MarkReady(conn *Connection) {
	select {
	case h.ready <- conn:
	case <-h.done:
	}
}

// Broadcast sends a snapshot to every ready connection. Snapshots older than
// the newest one already broadcast are dropped.
func (h *Hub) Broadcast(rev uint64, data []byte) {
	select {
	case h.broadcast <- &Snapshot{Rev: rev, Data: data}:
	case <-h.done:
	}
}

// BroadcastJSON marshals v and broadcasts it as revision rev.
func (h *Hub) BroadcastJSON(rev uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(rev, data)
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	// Send is only closed under the write lock.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// IsReady reports whether conn completed the hello handshake.
func (c *Connection) IsReady() bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.ready
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

var (
	// ErrBufferFull is returned when the send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrConnectionClosed is returned when sending on an unregistered connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrHubClosed is returned when registering after the hub stopped.
	ErrHubClosed = errors.New("hub closed")
)
