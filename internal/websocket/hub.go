package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/points-ledger/internal/domain"
)

// delivery is an encoded event bound for one topic
type delivery struct {
	topic string
	data  []byte
}

// Hub maintains the set of active clients and routes events to topics.
// Every client receives the global topic; a client with an identity also receives its
// private player topic.
type Hub struct {
	// Clients by private topic
	topics map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		allClients: make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			if client.identity != "" {
				topic := domain.PlayerTopic(client.identity)
				if _, ok := h.topics[topic]; !ok {
					h.topics[topic] = make(map[*Client]bool)
				}
				h.topics[topic][client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id, "identity", client.identity)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				if client.identity != "" {
					topic := domain.PlayerTopic(client.identity)
					if clients, ok := h.topics[topic]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Publish encodes an event and queues it for the topic's subscribers
func (h *Hub) Publish(_ context.Context, topic string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	h.Deliver(topic, data)
}

// Deliver queues an already encoded event. Events are dropped when the queue is full.
func (h *Hub) Deliver(topic string, data []byte) {
	select {
	case h.broadcast <- delivery{topic: topic, data: data}:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "topic", topic)
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.allClients
	if d.topic != domain.TopicGlobal {
		clients = h.topics[d.topic]
	}
	for client := range clients {
		select {
		case client.send <- d.data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// GetSubscriberCount returns the number of clients on a topic
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if topic == domain.TopicGlobal {
		return len(h.allClients)
	}
	return len(h.topics[topic])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
