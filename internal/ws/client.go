package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is validated by the WebSocket CORS middleware
	},
}

// Client wraps one WebSocket connection with a buffered outbound queue so
// store callbacks never block on a slow reader.
type Client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Upgrade hijacks the HTTP request into a Client and starts its write pump.
func Upgrade(w http.ResponseWriter, r *http.Request, playerID string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
	go c.writePump()
	return c, nil
}

// Send queues a JSON message for the client. Messages are dropped when the
// buffer is full; every payload is a full snapshot, so the next one catches
// the client up.
func (c *Client) Send(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message for player %s: %v", c.playerID, err)
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		log.Printf("[WS] Send buffer full for player %s, dropping message", c.playerID)
	}
}

// SendError pushes a typed error frame.
func (c *Client) SendError(message string) {
	c.Send(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// ReadJSON blocks for the next inbound frame, decoding into v.
func (c *Client) ReadJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Done is closed once the connection is torn down.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// writePump writes queued messages and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for player %s: %v", c.playerID, err)
				return
			}

		case <-c.closed:
			// Best-effort close frame; ignore errors (conn may already be closed).
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
