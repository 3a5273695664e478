package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	hubName = "posts"

	// Max total connections
	maxTotalConns = 10000
)

var (
	// ErrHubFull is returned by Register once maxTotalConns subscribers are connected.
	ErrHubFull = errors.New("server connection limit reached")
	// ErrHubClosed is returned by Register after Shutdown.
	ErrHubClosed = errors.New("hub is shut down")
)

// Hub tracks live event subscribers and broadcasts post events to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a subscriber for conn. conn may be nil in tests.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, ErrHubFull
	}

	client := newClient(h, conn, userID)
	h.clients[client] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// Unregister removes client and closes its send channel. It is safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if c.TrySend(message) {
			delivered++
		}
	}
	return delivered
}

// Deliver broadcasts a decoded event. It is the EventHandler the hub subscribes with.
func (h *Hub) Deliver(event models.PostEvent, payload []byte) {
	if n := h.BroadcastAll(payload); n > 0 {
		observability.WebSocketEventsTotal.WithLabelValues(event.Type).Add(float64(n))
	}
}

// StartWiring connects the Notifier to this hub so every published event reaches
// the connected subscribers.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.Deliver)
}

// Shutdown disconnects every subscriber. Later Register calls fail.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	// Closing Send makes each WritePump emit a close frame and hang up.
	for client := range h.clients {
		close(client.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	middleware.Logger.Info("Live event hub stopped", slog.Int("subscribers", len(h.clients)))
	h.clients = make(map[*Client]struct{})
	return nil
}
