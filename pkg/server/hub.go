package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultClientBuffer is the number of events queued per websocket
	// client before it is dropped as too slow.
	DefaultClientBuffer = 64

	writeTimeout = 10 * time.Second
	maxReadSize  = 4096
)

// KeyClient is the key of the first event a client receives; its value
// carries the client id.
const KeyClient = "client"

// Event is one status message on the stream.
type Event struct {
	Key   string    `json:"key"`
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

var upgrader = websocket.Upgrader{
	// the API is meant for local front ends served from other origins
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	id   string
	send chan []byte
}

// Hub fans status events out to websocket clients. It is safe for
// concurrent use; Publish never blocks.
type Hub struct {
	logger *log.Logger
	buffer int

	mu      sync.Mutex
	clients map[string]*client
	last    map[string][]byte
	order   []string
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Hub{
		logger:  logger,
		buffer:  DefaultClientBuffer,
		clients: map[string]*client{},
		last:    map[string][]byte{},
	}
}

// Publish sends a status event to every client and remembers it as the
// latest value of key. Its signature matches grammar.StatusFunc.
func (h *Hub) Publish(key string, value any) {
	msg, err := json.Marshal(Event{Key: key, Value: value, Time: time.Now()})
	if err != nil {
		h.logger.Warn("status event not encodable", "key", key, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.last[key]; !ok {
		h.order = append(h.order, key)
	}
	h.last[key] = msg
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("status client too slow, dropped", "client", id)
			h.dropLocked(c)
		}
	}
}

// Latest returns the last event published under key.
func (h *Hub) Latest(key string) (Event, bool) {
	h.mu.Lock()
	msg, ok := h.last[key]
	h.mu.Unlock()
	if !ok {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return Event{}, false
	}
	return ev, true
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.dropLocked(c)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events until
// the client goes away. The client first receives its id, then the latest
// value of every key seen so far.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{id: uuid.NewString(), send: make(chan []byte, h.buffer)}
	if err := h.register(c); err != nil {
		h.logger.Warn("status client not registered", "err", err)
		conn.Close()
		return
	}
	h.logger.Debug("status client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.write(conn, c)
	h.read(conn, c)
	h.logger.Debug("status client disconnected", "client", c.id)
}

func (h *Hub) register(c *client) error {
	hello, err := json.Marshal(Event{Key: KeyClient, Value: map[string]string{"clientId": c.id}, Time: time.Now()})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	c.send <- hello
	for _, key := range h.order {
		select {
		case c.send <- h.last[key]:
		default:
			// more keys than buffer; the rest arrive with their next update
			return nil
		}
	}
	return nil
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

func (h *Hub) write(conn *websocket.Conn, c *client) {
	defer conn.Close()
	for msg := range c.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// read drains the connection so close frames are processed. Clients send
// nothing else.
func (h *Hub) read(conn *websocket.Conn, c *client) {
	conn.SetReadLimit(maxReadSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}
