package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/csbedford/picklematch/internal/transport/protocol"
)

// Client is a WebSocket client for the auth state stream.
type Client struct {
	conn         *websocket.Conn
	connectionID string
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello() error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeHello,
			Ts:   time.Now().UnixMilli(),
		},
		ClientMeta: map[string]string{
			"client": "picklematch-cli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	switch base.Type {
	case protocol.TypeHelloAck:
		var ack protocol.HelloAckMessage
		if err := json.Unmarshal(data, &ack); err != nil {
			return fmt.Errorf("unmarshal hello_ack: %w", err)
		}
		c.connectionID = ack.ConnectionID
		return nil
	case protocol.TypeError:
		var errMsg protocol.ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	default:
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}
}

// ReadStates calls onState for every auth_state message until the connection
// closes. Error messages from the server are returned.
func (c *Client) ReadStates(onState func(protocol.AuthStateView)) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}

		switch base.Type {
		case protocol.TypeAuthState:
			var msg protocol.AuthStateMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return fmt.Errorf("unmarshal auth_state: %w", err)
			}
			onState(msg.State)
		case protocol.TypeError:
			var errMsg protocol.ErrorMessage
			_ = json.Unmarshal(data, &errMsg)
			return fmt.Errorf("server error: %s - %s", errMsg.Code, errMsg.Message)
		}
	}
}

// wsURL derives the stream URL from an http(s) base URL.
func wsURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}
