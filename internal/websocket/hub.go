package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event types pushed to connected dashboards
const (
	EventReadingCreated   = "reading.created"
	EventReadingDeleted   = "reading.deleted"
	EventReadingsImported = "readings.imported"
)

// Event is the envelope of every message written to a socket
type Event struct {
	Type     string      `json:"type"`
	ClientID *uuid.UUID  `json:"client_id,omitempty"`
	Data     interface{} `json:"data"`
}

type envelope struct {
	clientID uuid.UUID
	payload  []byte
}

// Subscriber is one connected dashboard. A subscriber bound to a venue
// (Venue != uuid.Nil) only receives that venue's events plus global ones.
type Subscriber struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
	Venue  uuid.UUID
}

func (s *Subscriber) wants(clientID uuid.UUID) bool {
	return s.Venue == uuid.Nil || clientID == uuid.Nil || s.Venue == clientID
}

// Hub fans settlement events out to subscribers
type Hub struct {
	subscribers map[*Subscriber]bool
	broadcast   chan envelope
	register    chan *Subscriber
	unregister  chan *Subscriber
	mu          sync.Mutex
}

// NewHub initializes a new WS Hub instance
func NewHub() *Hub {
	return &Hub{
		broadcast:   make(chan envelope, sendBuffer),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		subscribers: make(map[*Subscriber]bool),
	}
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
			log.Printf("websocket: user %s subscribed (venue %s)", sub.UserID, sub.Venue)
		case sub := <-h.unregister:
			h.mu.Lock()
			h.drop(sub)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers {
				if !sub.wants(msg.clientID) {
					continue
				}
				select {
				case sub.Send <- msg.payload:
				default:
					log.Printf("websocket: dropping slow subscriber %s", sub.UserID)
					h.drop(sub)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held
func (h *Hub) drop(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.Send)
	}
}

// ClientCount returns the number of registered sockets.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// BroadcastEvent queues an event about one venue, or about everything when
// clientID is uuid.Nil. It never blocks the caller: when the queue is full the
// event is dropped and logged.
func (h *Hub) BroadcastEvent(eventType string, clientID uuid.UUID, data interface{}) {
	ev := Event{Type: eventType, Data: data}
	if clientID != uuid.Nil {
		ev.ClientID = &clientID
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("websocket: failed to encode %s event: %v", eventType, err)
		return
	}
	select {
	case h.broadcast <- envelope{clientID: clientID, payload: payload}:
	default:
		log.Printf("websocket: broadcast queue full, dropping %s event", eventType)
	}
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.Send:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for pongs and close frames; subscribers never send data.
func (s *Subscriber) readPump() {
	defer func() {
		s.Hub.unregister <- s
		_ = s.Conn.Close()
	}()
	s.Conn.SetReadLimit(512)
	_ = s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		return s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error for %s: %v", s.UserID, err)
			}
			return
		}
	}
}

// ServeWs authenticates ?token= and upgrades the connection. An optional
// ?client_id= narrows the feed to one venue.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Println("WebSocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		log.Println("WebSocket connection rejected: invalid token:", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	userID, _ := token.Claims.GetSubject()

	var venue uuid.UUID
	if raw := c.Query("client_id"); raw != "" {
		if venue, err = uuid.Parse(raw); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	sub := &Subscriber{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), UserID: userID, Venue: venue}
	hub.register <- sub

	go sub.writePump()
	go sub.readPump()
}
