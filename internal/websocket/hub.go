package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is pushed to every connected client.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

// ScanHandler processes a scan pushed by a scanner device.
type ScanHandler func(c *Client, msg ScanMessage) (interface{}, error)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	onScan ScanHandler
	log    logrus.FieldLogger

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
		log:        log.WithField("module", "websocket"),
	}
}

// SetScanHandler wires device scans into the opname service.
func (h *Hub) SetScanHandler(fn ScanHandler) {
	h.mu.Lock()
	h.onScan = fn
	h.mu.Unlock()
}

func (h *Hub) scanHandler() ScanHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onScan
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok && old != client {
				close(old.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"client": client.ID, "actor": client.ActorID}).Debug("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ID]; ok && cur == client {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.WithField("client", client.ID).Debug("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// join hands c to Run. It reports false once the hub is stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to Run. After Stop, Run closes every send channel
// itself.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for every client. It never blocks; when the queue is
// full the event is dropped and false is returned.
func (h *Hub) Broadcast(ev Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("marshal event")
		return false
	}
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.log.WithField("type", ev.Type).Warn("broadcast queue full, event dropped")
		return false
	}
}

// SendTo sends a message to one client.
func (h *Hub) SendTo(clientID string, message interface{}) bool {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("marshal message")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case client.send <- jsonMsg:
		return true
	default:
		return false
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
