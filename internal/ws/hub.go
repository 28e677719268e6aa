package ws

import (
	"log"
	"sync"

	"github.com/stefan-jaeger/coding-interview/internal/metrics"
	"github.com/stefan-jaeger/coding-interview/internal/protocol"
)

// Hub is the per-session broadcast relay: it fans typed events out to
// every connection subscribed to a session topic, optionally excluding
// the sender. Delivery preserves publish order per sender; there is no
// global order across concurrent publishers.
type Hub struct {
	// Subscribed connections by session id
	rooms map[string]map[*Client]bool

	// Fan-out messages for a session topic
	broadcast chan *Message

	// Messages addressed to a single connection
	direct chan *directMessage

	// Subscription changes; a client registers only after its join
	// was admitted
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	metrics *metrics.Metrics
}

type Message struct {
	SessionID string
	Data      []byte

	// Sender is skipped during fan-out when non-nil.
	Sender *Client
}

type directMessage struct {
	client *Client
	data   []byte
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message),
		direct:     make(chan *directMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
	}
}

// Publish fans an event out to the session topic. Pass the originating
// client as exclude to skip its own connection, or nil to reach
// everyone.
func (h *Hub) Publish(sessionID string, ev protocol.Event, exclude *Client) {
	data, err := protocol.Encode(ev)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", ev.EventType(), err)
		return
	}
	h.broadcast <- &Message{SessionID: sessionID, Data: data, Sender: exclude}
}

// SendTo delivers an event to a single connection, bypassing the
// session topic. Used for session_init, snapshot replay, query replies
// and protocol errors.
func (h *Hub) SendTo(c *Client, ev protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", ev.EventType(), err)
		return
	}
	h.direct <- &directMessage{client: c, data: data}
}

// Run owns all subscription state and all writes into client send
// queues; it must be the only goroutine touching them so a slow
// consumer can be dropped without racing channel closes.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.sessionID]; !ok {
				h.rooms[client.sessionID] = make(map[*Client]bool)
			}
			h.rooms[client.sessionID][client] = true
			count := len(h.rooms[client.sessionID])
			h.mu.Unlock()

			if h.metrics != nil {
				h.metrics.ActiveConnections.Inc()
			}
			log.Printf("Connection subscribed to session %s (total: %d)", client.sessionID, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					client.dropped = true
					close(client.send)
					if h.metrics != nil {
						h.metrics.ActiveConnections.Dec()
					}

					if len(clients) == 0 {
						delete(h.rooms, client.sessionID)
						log.Printf("Session topic %s closed (empty)", client.sessionID)
					} else {
						log.Printf("Connection left session %s (remaining: %d)", client.sessionID, len(clients))
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.rooms[message.SessionID]; ok {
				for client := range clients {
					if client == message.Sender {
						continue
					}
					select {
					case client.send <- message.Data:
					default:
						// Bounded queue overflowed: drop the slow
						// consumer rather than stall the session.
						client.dropped = true
						close(client.send)
						delete(clients, client)
						if h.metrics != nil {
							h.metrics.ActiveConnections.Dec()
						}
						log.Printf("Dropped slow consumer in session %s", message.SessionID)
					}
				}
			}
			h.mu.Unlock()

		case dm := <-h.direct:
			// The read pump keeps producing replies for a short while
			// after an eviction closed the send queue; those go
			// nowhere.
			if dm.client.dropped {
				continue
			}
			select {
			case dm.client.send <- dm.data:
			default:
				h.mu.Lock()
				if clients, ok := h.rooms[dm.client.sessionID]; ok {
					if _, ok := clients[dm.client]; ok {
						dm.client.dropped = true
						close(dm.client.send)
						delete(clients, dm.client)
						if h.metrics != nil {
							h.metrics.ActiveConnections.Dec()
						}
						log.Printf("Dropped slow consumer in session %s", dm.client.sessionID)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// SubscriberCount returns how many connections are subscribed to a
// session topic.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, clients := range h.rooms {
		total += len(clients)
	}
	return total
}

// GetActiveRooms maps each live session topic to its subscriber count.
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for id, clients := range h.rooms {
		out[id] = len(clients)
	}
	return out
}
