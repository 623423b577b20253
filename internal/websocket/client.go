package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is the deadline for a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; clients only receive.
	maxMessageSize = 512
)

// Client wraps a single websocket connection belonging to a user.
type Client struct {
	id        string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	closeOnce sync.Once
}

func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
	}
}

func (c *Client) GetID() string     { return c.id }
func (c *Client) GetUserID() string { return c.userID }

// SendEvent queues the event for delivery. A full buffer counts as a
// dead client and drops the connection rather than blocking the hub.
func (c *Client) SendEvent(event Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().
			Str("client_id", c.id).
			Str("user_id", c.userID).
			Msg("client send buffer full, closing connection")
		c.Close()
		return websocket.ErrCloseSent
	}
}

// Close unregisters the client and tears down the connection once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		close(c.send)
		_ = c.conn.Close()
	})
}

// ReadPump consumes inbound frames to keep the connection alive and
// detect disconnects. Clients do not send application messages.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().
					Err(err).
					Str("client_id", c.id).
					Msg("websocket read error")
			}
			return
		}
	}
}

// WritePump drains the send channel to the peer and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
