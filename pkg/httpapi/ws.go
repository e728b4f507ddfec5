package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Hub fans eventbus events out to WebSocket clients, one filtered
// subscription per connection: connections are tracked under a lock
// for ActiveConnections, but writes to a given connection happen only
// on that connection's own goroutine, so no send-side lock is needed.
type Hub struct {
	bus          *eventbus.Bus
	writeTimeout time.Duration

	mu          sync.RWMutex
	connections map[string]struct{}
}

// NewHub builds a Hub backed by bus, bounding each send by writeTimeout.
func NewHub(bus *eventbus.Bus, writeTimeout time.Duration) *Hub {
	return &Hub{bus: bus, writeTimeout: writeTimeout, connections: make(map[string]struct{})}
}

// ActiveConnections reports the number of live WebSocket clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HandleConnection drives one WebSocket client's lifecycle: subscribe
// to bus filtered by filter, push every matching event as JSON, and
// exit when parentCtx is cancelled or the client disconnects. Blocks
// until the connection closes.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn, filter eventbus.EventFilter) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	h.register(connID)
	defer h.unregister(connID)

	// A separate goroutine drains client reads purely to notice when the
	// peer closes the connection; this stream is server -> client only.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	recv := h.bus.SubscribeFiltered(filter)
	defer recv.Close()

	h.sendJSON(ctx, conn, map[string]string{
		"type":          "connection.established",
		"connection_id": connID,
	})

	for {
		ev, ok := recv.Recv(ctx)
		if !ok {
			return
		}
		h.sendJSON(ctx, conn, ev)
	}
}

func (h *Hub) sendJSON(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("httpapi: failed to marshal websocket message", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("httpapi: failed to write websocket message", "error", err)
	}
}

func (h *Hub) register(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[id] = struct{}{}
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// wsHandler handles GET /ws/events: upgrades to a WebSocket and streams every
// bus event, optionally narrowed by a session_id query parameter.
// Origin checking is left to the reverse proxy deploying this service.
func (s *Server) wsHandler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	filter := eventbus.NewEventFilter()
	if sid := c.Query("session_id"); sid != "" {
		filter = filter.WithSession(sid)
	}

	s.hub.HandleConnection(c.Request.Context(), conn, filter)
}
