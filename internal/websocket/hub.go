package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
	"github.com/muhammaddzaki123/NutripathBack/internal/realtime"
)

// Hub fans realtime message events out to the websocket connections of both
// conversation participants. Delivery order across messages is not
// guaranteed; clients re-sort by timestamp.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.Message

	feedSub realtime.Subscription
}

// Client wraps one websocket connection. The send channel is closed exactly
// once, under the mutex, so deliveries racing a disconnect are dropped instead
// of panicking.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	participantID string

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

type Frame struct {
	Type    string          `json:"type"`
	ChatID  string          `json:"chat_id,omitempty"`
	Unread  int             `json:"unread,omitempty"`
	Message *models.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	SentAt  string          `json:"sent_at,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *models.Message, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, participantID string) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		participantID: participantID,
		send:          make(chan []byte, 32),
	}
}

// AttachFeed subscribes the hub to every message-created event so each
// instance can deliver to the connections it holds.
func (h *Hub) AttachFeed(ctx context.Context, feed *realtime.Feed) error {
	sub, err := feed.Subscribe(ctx, realtime.AllScope(), func(message models.Message) {
		h.broadcast <- &message
	})
	if err != nil {
		return err
	}
	h.feedSub = sub
	return nil
}

// Detach cancels the feed subscription. Safe to call more than once.
func (h *Hub) Detach() {
	if h.feedSub != nil {
		h.feedSub.Unsubscribe()
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.participantID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.participantID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.participantID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				client.closeSend()
			}
			if len(set) == 0 {
				delete(h.clients, client.participantID)
			}
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) deliver(message *models.Message) {
	payload, err := json.Marshal(Frame{
		Type:    "message",
		ChatID:  message.ChatID,
		Message: message,
		SentAt:  message.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("chat hub: encode message %s: %v", message.ID, err)
		return
	}

	h.sendToParticipant(message.UserID, payload)
	if message.NutritionistID != message.UserID {
		h.sendToParticipant(message.NutritionistID, payload)
	}
}

func (h *Hub) sendToParticipant(participantID string, payload []byte) {
	set, ok := h.clients[participantID]
	if !ok {
		return
	}

	for client := range set {
		if !client.enqueue(payload) {
			delete(set, client)
			client.closeSend()
		}
	}
	if len(set) == 0 {
		delete(h.clients, participantID)
	}
}

// Push queues a frame for this client only, dropping it if the connection is
// backed up or already gone.
func (c *Client) Push(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// enqueue reports false when the payload was dropped, either because the
// client shut down or because its queue is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound queue down. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) WriteError(message string) {
	c.Push(Frame{
		Type:   "error",
		Error:  message,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
}
