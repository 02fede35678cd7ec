package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// AllRegions is the room of clients that follow every region.
const AllRegions = "*"

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Region  string          `json:"region"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by region
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	mu  sync.RWMutex
	log logrus.FieldLogger
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.region] == nil {
				h.rooms[client.region] = make(map[*Client]bool)
			}
			h.rooms[client.region][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.log.WithError(err).WithField("type", event.Type).Error("marshal event")
				continue
			}

			h.mu.Lock()
			h.deliver(event.Region, message)
			if event.Region != AllRegions {
				h.deliver(AllRegions, message)
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for the clients of region and of AllRegions.
// It never blocks: when the queue is full the event is dropped and logged.
func (h *Hub) Publish(region, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("marshal event payload")
		return
	}

	event := Event{Type: eventType, Region: normalizeRegion(region), Payload: raw}
	select {
	case h.broadcast <- event:
	default:
		h.log.WithFields(logrus.Fields{"type": eventType, "region": event.Region}).Warn("event queue full, dropping event")
	}
}

// deliver must be called with mu held.
func (h *Hub) deliver(region string, message []byte) {
	for client := range h.rooms[region] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			h.remove(client)
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.region]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.region)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

func normalizeRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return AllRegions
	}
	return region
}
