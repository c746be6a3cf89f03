// Package realtime pushes booking lifecycle events to connected admin dashboards.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voiceofrajkot/vor-api/models"
)

// Event types.
const (
	BookingCreated         = "booking.created"
	BookingPaymentUploaded = "booking.payment_uploaded"
	BookingVerified        = "booking.verified"
	BookingRejected        = "booking.rejected"
)

type Message struct {
	Type      string          `json:"type"`
	Booking   *models.Booking `json:"booking"`
	Timestamp int64           `json:"timestamp"`
}

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.Send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.Send <- msg:
				default:
					// slow consumer
					close(c.Send)
					delete(h.clients, c)
				}
			}

		case <-h.done:
			for c := range h.clients {
				close(c.Send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Stop closes every client connection and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues a booking event for every connected dashboard. It never blocks the
// caller: when the queue is full the event is dropped and logged.
func (h *Hub) Publish(eventType string, b *models.Booking) {
	data, err := json.Marshal(Message{Type: eventType, Booking: b, Timestamp: time.Now().Unix()})
	if err != nil {
		h.log.Error("realtime marshal", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.log.Warn("realtime queue full, dropping event", zap.String("type", eventType))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Serve upgrades the request and attaches the connection to the hub. Authorisation
// happens before this is called.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{Conn: conn, Send: make(chan []byte, 32), UserID: userID}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}
	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for disconnects; dashboards never send data.
func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
