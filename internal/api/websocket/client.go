package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/ShackControl/internal/auth"
	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/interfaces"
	"github.com/KevinKickass/ShackControl/internal/session"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the auth message
	authWait = 10 * time.Second

	// Upper bound for waiting on the session loop
	commandWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Send channel buffer size
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
	claims *auth.Claims

	mu     sync.Mutex
	closed bool
}

func (c *Client) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	if !c.trySend(data) {
		c.logger.Warn("Client send buffer full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	registered := false
	// writePump closes the connection once send is closed and drained
	defer func() {
		if registered {
			c.hub.remove(c)
		} else {
			c.closeSend()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if c.claims != nil {
		if !c.hub.add(c) {
			return
		}
		registered = true
		c.welcome()
	} else {
		c.conn.SetReadDeadline(time.Now().Add(authWait))
	}

	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr()))
			}
			return
		}

		// First message MUST be authentication
		if c.claims == nil {
			if !c.authenticate(msg) {
				return
			}
			c.conn.SetReadDeadline(time.Time{})
			if !c.hub.add(c) {
				return
			}
			registered = true
			c.welcome()
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) authenticate(msg Inbound) bool {
	if msg.Type != MessageTypeAuth {
		c.sendMessage(NewMessage(MessageTypeAuthFailed, AuthData{Reason: "first message must be authentication"}))
		return false
	}
	if msg.Token == "" {
		c.sendMessage(NewMessage(MessageTypeAuthFailed, AuthData{Reason: "missing token in auth message"}))
		return false
	}

	claims, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remote_addr", c.remoteAddr()))
		c.sendMessage(NewMessage(MessageTypeAuthFailed, AuthData{Reason: "invalid or expired token"}))
		return false
	}

	c.claims = claims
	c.logger.Info("WebSocket client authenticated",
		zap.String("remote_addr", c.remoteAddr()),
		zap.String("operator", claims.Operator),
		zap.String("scope", string(claims.Scope)))
	return true
}

// welcome confirms the session and sends the current state.
func (c *Client) welcome() {
	c.sendMessage(NewMessage(MessageTypeAuthSuccess, AuthData{
		Operator: c.claims.Operator,
		Scope:    string(c.claims.Scope),
	}))
	c.sendMessage(NewSnapshotMessage(c.hub.panel.Snapshot()))
}

func (c *Client) handleMessage(msg Inbound) {
	if msg.Type != MessageTypeCommand {
		c.logger.Debug("Ignoring client message",
			zap.String("remote_addr", c.remoteAddr()),
			zap.String("type", string(msg.Type)))
		return
	}
	if !c.claims.Scope.Allows(auth.ScopeControl) {
		c.sendMessage(NewErrorMessage("FORBIDDEN", "insufficient scope"))
		return
	}

	action, err := control.ParseAction(msg.Action)
	if err != nil || !interfaces.RemoteAllowed(action) {
		c.sendMessage(NewErrorMessage("INVALID_ACTION", "unknown or forbidden action: "+msg.Action))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()

	snap, err := c.hub.panel.Submit(ctx, action)
	if err != nil {
		c.logger.Warn("Remote command failed",
			zap.String("operator", c.claims.Operator),
			zap.String("action", string(action)),
			zap.Error(err))
		code := types.ErrorCode(err)
		switch {
		case errors.Is(err, session.ErrClosed):
			code = "SESSION_CLOSED"
		case errors.Is(err, control.ErrUnsupported):
			code = "UNSUPPORTED_ACTION"
		}
		c.sendMessage(NewErrorMessage(code, err.Error()))
		return
	}

	c.logger.Info("Remote command executed",
		zap.String("operator", c.claims.Operator),
		zap.String("action", string(action)))
	c.sendMessage(NewMessage(MessageTypeCommandResult, CommandResultData{
		Action:   string(action),
		Snapshot: snap,
	}))
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// ServeWs handles WebSocket upgrade requests
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}
	if !hub.auth.Enabled() {
		client.claims = &auth.Claims{Operator: "local", Scope: auth.ScopeControl}
	}

	go client.writePump()
	go client.readPump()
}
