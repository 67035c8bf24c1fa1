package websocket

import (
	"context"
	"sync"

	"github.com/edlight123/eventhaiti-payouts/notifications"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// Hub broadcasts admin events to every connected admin. All connection writes happen on
// the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan notifications.AdminEvent
	done       chan struct{}
	log        zerolog.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan notifications.AdminEvent, 64),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "admin_feed").Logger(),
		clients:    make(map[uuid.UUID]*Client),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				_ = c.Conn.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info().Str("user_id", client.UserID.String()).Msg("admin feed client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			h.log.Info().Str("user_id", client.UserID.String()).Msg("admin feed client unregistered")
		case evt := <-h.broadcast:
			h.fanOut(evt)
		}
	}
}

func (h *Hub) fanOut(evt notifications.AdminEvent) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Conn.WriteJSON(evt); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.UserID.String()).Msg("admin feed write failed, dropping client")
			_ = c.Conn.Close()
			h.mu.Lock()
			delete(h.clients, c.ID)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

// Deliver queues evt for broadcast. It gives up when ctx ends so a stalled hub never
// holds up the notification dispatcher.
func (h *Hub) Deliver(ctx context.Context, evt notifications.AdminEvent) error {
	select {
	case h.broadcast <- evt:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
