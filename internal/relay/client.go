// Package relay manages individual WebSocket connections: the per-connection
// auth state machine, the read/write pumps, and lifecycle control.
package relay

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// authState tracks where a connection stands relative to the authentication
// gate. The transition statePending -> stateAuthenticated happens at most once
// per connection; it is driven exclusively by the connection's read pump.
type authState int

const (
	statePending authState = iota
	stateAuthenticated
)

// Client represents one live WebSocket session. Until the gate promotes it,
// every inbound frame is either an auth attempt or noise; afterwards every
// frame is a chat-send request attributed to the bound display name.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	addr     string
	state    authState
	username string
	closed   bool

	maxMessageSize int64
	limiter        *tokenBucket
	limiterBurst   int
	limiterRefill  time.Duration
}

// NewClient creates a Client in the pending state for the given connection.
// The send channel is buffered so fan-out to this client never blocks the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		state:          statePending,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newTokenBucket(cfg.RateLimitBurst, cfg.RateLimitRefillInterval),
		limiterBurst:   cfg.RateLimitBurst,
		limiterRefill:  cfg.RateLimitRefillInterval,
	}
}

// ID returns the opaque connection identifier used in logs.
func (c *Client) ID() string {
	return c.id
}

// discardFrame is the single place the relay's silent-failure policy lives:
// the frame is dropped, the reason is logged, the client is never told, and
// the connection stays open.
func (c *Client) discardFrame(kind string, err error) {
	if err != nil {
		log.Printf("Discarding %s frame from %s (%s): %v", kind, c.addr, c.id, err)
		return
	}
	log.Printf("Discarding %s frame from %s (%s)", kind, c.addr, c.id)
}

// handleFrame routes one inbound frame through the gate or, once the
// connection is authenticated, into the broadcast path.
func (c *Client) handleFrame(raw []byte) {
	switch c.state {
	case statePending:
		c.handleAuthFrame(raw)
	case stateAuthenticated:
		c.handleChatFrame(raw)
	}
}

// handleAuthFrame runs the authentication gate. Success is silent: the
// connection is promoted and added to the registry, nothing is sent back.
// Failure is just as silent, and the client may retry with another frame.
func (c *Client) handleAuthFrame(raw []byte) {
	username, err := parseAuthRequest(raw)
	if err != nil {
		c.discardFrame("pre-auth", err)
		return
	}

	if !c.hub.promoteClient(c, username) {
		// Teardown won the race; the read pump will exit shortly.
		return
	}

	c.state = stateAuthenticated
	c.username = username
}

// handleChatFrame turns a post-auth frame into a ChatMessage with a
// server-assigned timestamp and hands it to the broadcast engine.
func (c *Client) handleChatFrame(raw []byte) {
	req, err := parseSendRequest(raw)
	if err != nil {
		c.discardFrame("chat", err)
		return
	}

	c.hub.publish(ChatMessage{
		Sender:    c.username,
		Text:      req.Text,
		Timestamp: time.Now().UTC(),
	})
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// logReadError classifies the read failure that ended this connection.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Frame from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d frames per %s); discarding frame", c.addr, c.limiterBurst, c.limiterRefill)
		return false
	}
	return true
}

// readPump consumes inbound frames until the transport fails or closes. Any
// read error triggers teardown of this connection only.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if !c.checkRateLimit() {
			continue
		}

		c.handleFrame(raw)
	}
}

// writePump drains the send channel to the transport and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in writePump: %v", err)
			}
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !c.writeFrame(payload, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		case <-c.hub.ctx.Done():
			// Hub shutdown; the transport is being closed by the hub.
			return
		}
	}
}

// writeFrame writes one outbound frame plus anything else already queued,
// returning false when the pump should stop.
func (c *Client) writeFrame(payload []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		// The hub closed the send channel.
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing close message to %s: %v", c.addr, err)
			}
		}
		return false
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", c.addr, err)
		return false
	}

	if _, err := w.Write(payload); err != nil {
		log.Printf("Error writing frame to %s: %v", c.addr, err)
		return false
	}

	// Flush any frames queued behind this one, newline-separated.
	queued := len(c.send)
	for i := 0; i < queued; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			log.Printf("Error writing newline to %s: %v", c.addr, err)
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			log.Printf("Error writing queued frame to %s: %v", c.addr, err)
			return false
		}
	}

	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", c.addr, err)
		return false
	}
	return true
}

// writePing sends a keepalive ping, returning false when the pump should stop.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
