package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fieldintake/internal/service"
)

// Dashboards are one-way consumers: the server pushes status frames, the
// client sends nothing but control frames.
const (
	statusWriteWait = 5 * time.Second
	clientPongWait  = 45 * time.Second
	pingEvery       = 30 * time.Second // Must stay under clientPongWait
	inboundLimit    = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Device-local server, all origins allowed
	},
}

// Handler upgrades dashboard connections and attaches them to the hub
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService) *Handler {
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
	}
}

// DashboardWS handles GET /v1/ws/uploads. The token rides in the query
// string because browsers cannot set headers on WebSocket upgrades.
func (h *Handler) DashboardWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}
	h.hub.Register(conn)

	log.Printf("Interviewer %s watching upload status", claims.InterviewerID)

	go h.statusWriter(wsConn, conn)
	go h.drainLoop(wsConn, conn)
}

// drainLoop consumes the client side of the socket. Dashboards never send
// application frames; reading exists for pong handling and close detection.
func (h *Handler) drainLoop(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(inboundLimit)
	wsConn.SetReadDeadline(time.Now().Add(clientPongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(clientPongWait))
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Dashboard socket error: %v", err)
			}
			return
		}
	}
}

// statusWriter drains the send queue onto the socket and keeps the
// connection alive with pings. Status frames are small single JSON
// messages, written whole.
func (h *Handler) statusWriter(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(statusWriteWait))
			if !ok {
				// Hub closed the channel; say goodbye properly.
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(statusWriteWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
