package ws

import (
	"encoding/json"
	"log"
	"sync"

	"fieldintake/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgUploadStatus MessageType = "upload_status"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages dashboard WebSocket connections and fans upload status
// transitions out to all of them.
type Hub struct {
	conns map[*Connection]bool

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
}

// Connection represents one dashboard WebSocket connection
type Connection struct {
	Send chan []byte
	Hub  *Hub
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = true
			active := len(h.conns)
			h.mu.Unlock()
			log.Printf("Dashboard connected (%d active)", active)

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.conns[conn] {
				delete(h.conns, conn)
				close(conn.Send)
			}
			active := len(h.conns)
			h.mu.Unlock()
			log.Printf("Dashboard disconnected (%d active)", active)

		case data := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastUploadStatus pushes one unit's current delivery state to every
// dashboard (implements service.Broadcaster).
func (h *Hub) BroadcastUploadStatus(unit *model.UploadUnit) {
	payload, err := json.Marshal(unit)
	if err != nil {
		return
	}
	data, _ := json.Marshal(&Message{
		Type:    MsgUploadStatus,
		Payload: payload,
	})

	select {
	case h.broadcast <- data:
	default:
		// Drop rather than block an upload attempt
	}
}
