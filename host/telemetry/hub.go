package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"robocore/host/robot"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientQueue is how many reports a slow client may fall behind before
// reports to it are dropped.
const clientQueue = 32

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans encoder reports out to every connected websocket client
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues rep for every client without blocking
func (h *Hub) Publish(rep robot.EncoderReport) {
	msg, err := json.Marshal(rep)
	if err != nil {
		h.logger.Printf("[hub][error] failed to encode report, because %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Printf("[%s][drop] client is behind", c.conn.RemoteAddr())
		}
	}
}

// ServeHTTP upgrades the request and streams reports until the client
// goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Println("upgrade:", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Printf("[%s][open]", conn.RemoteAddr())

	go h.writePump(c)

	// Clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	h.logger.Printf("[%s][close]", conn.RemoteAddr())
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Printf("[%s][error] failed to send JSON, because %v", c.conn.RemoteAddr(), err)
			return
		}
	}
}
