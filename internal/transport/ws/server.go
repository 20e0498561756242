// Package ws streams auth state snapshots to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/csbedford/picklematch/internal/authsync"
	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/hub"
	"github.com/csbedford/picklematch/internal/transport/protocol"
)

// Config holds WebSocket settings.
type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// Server handles WebSocket connections.
type Server struct {
	cfg      Config
	hub      *hub.Hub
	state    authsync.StateReader
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg Config, h *hub.Hub, state authsync.StateReader, logger *slog.Logger) *Server {
	if h == nil || state == nil {
		panic("ws: NewServer requires a hub and an auth state reader")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		hub:    h,
		state:  state,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream forwards every auth state snapshot to the hub until ctx is done.
func (s *Server) Stream(ctx context.Context) error {
	unsubscribe := s.state.Subscribe(s.publish)
	defer unsubscribe()

	// Seed the hub so clients connecting before the first change get a snapshot.
	s.publish(s.state.State())

	<-ctx.Done()
	return nil
}

func (s *Server) publish(state domain.AuthState) {
	if err := s.hub.BroadcastJSON(state.Rev, protocol.NewAuthStateMessage(state)); err != nil {
		s.logger.Error("failed to broadcast auth state", "rev", state.Rev, "error", err)
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	if err := s.hub.Register(conn); err != nil {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return ws.Close()
	}

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "connection_id", conn.ID, "error", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write message", "connection_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	default:
		s.sendError(conn, baseMsg.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello acknowledges the client and starts the state stream.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
		},
		ConnectionID: conn.ID,
	}
	if err := s.hub.SendJSONToConnection(conn, ack); err != nil {
		s.logger.Warn("failed to send hello_ack", "connection_id", conn.ID, "error", err)
		return
	}
	s.hub.MarkReady(conn)

	s.logger.Debug("hello handshake completed", "connection_id", conn.ID, "client_meta", msg.ClientMeta)
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	}
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		s.logger.Warn("failed to send error", "connection_id", conn.ID, "error", err)
	}
}
