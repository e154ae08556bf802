package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this interval (must be < pongWait)
	pingInterval = 30 * time.Second
)

// Client is a viewer connected over WebSocket. It receives the same
// events as SSE viewers.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Hub    *Hub
	events <-chan []byte
	direct chan []byte
	logger *zap.Logger
}

// Serve registers conn with the hub and blocks until the connection ends.
func (h *Hub) Serve(conn *websocket.Conn) {
	id, events := h.Subscribe()
	c := &Client{
		ID:     id,
		Conn:   conn,
		Hub:    h,
		events: events,
		direct: make(chan []byte, 8),
		logger: h.logger.With(zap.String("subscriber", id)),
	}
	go c.WritePump()
	c.ReadPump()
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unsubscribe(c.ID)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("invalid client message", zap.Error(err))
			continue
		}
		c.handleMessage(&msg)
	}
}

// WritePump writes hub events and keep-alive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.events:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case payload := <-c.direct:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping error", zap.Error(err))
				return
			}
		}
	}
}

// handleMessage processes events sent by the viewer.
func (c *Client) handleMessage(msg *Message) {
	switch msg.Event {
	case EventTyping:
		c.Hub.Broadcast(EventTyping, msg.Data)
	case "ping":
		select {
		case c.direct <- []byte(`{"event":"pong"}`):
		default:
		}
	default:
		c.logger.Debug("unknown client event", zap.String("event", msg.Event))
	}
}
