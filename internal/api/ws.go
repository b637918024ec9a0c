package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miradorstack/mirador-console/internal/metrics"
	"github.com/miradorstack/mirador-console/internal/store"
)

const (
	defaultMaxWSClients = 200
	wsWriteWait         = 5 * time.Second
	wsReadLimit         = 4096
)

// SnapshotSource is the part of the store the push surfaces read.
type SnapshotSource interface {
	Snapshot() store.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Hub pushes a fresh snapshot to every websocket client whenever the store changes.
// Only the Run goroutine writes to connections.
type Hub struct {
	source     SnapshotSource
	logger     *slog.Logger
	maxClients int
	upgrader   websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
}

// NewHub creates a hub over source. maxClients <= 0 selects the default cap.
func NewHub(source SnapshotSource, maxClients int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if maxClients <= 0 {
		maxClients = defaultMaxWSClients
	}
	return &Hub{
		source:     source,
		logger:     logger,
		maxClients: maxClients,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx ends or the store closes.
func (h *Hub) Run(ctx context.Context) {
	changes, cancel := h.source.Subscribe()
	defer cancel()
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.maxClients {
				h.mu.Unlock()
				h.reject(conn)
				continue
			}
			h.clients[conn] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.SetWSClients(count)
			h.logger.Debug("websocket client registered", slog.Int("clients", count))
			h.send(conn, h.source.Snapshot())

		case conn := <-h.unregister:
			h.drop(conn)

		case _, ok := <-changes:
			if !ok {
				return
			}
			h.broadcast(h.source.Snapshot())
		}
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}
	go h.readPump(conn)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains client frames so close and ping control messages are handled.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
			return
		}
	}
}

func (h *Hub) broadcast(snap store.Snapshot) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, snap)
	}
}

func (h *Hub) send(conn *websocket.Conn, snap store.Snapshot) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snap); err != nil {
		h.logger.Debug("websocket write failed", slog.Any("error", err))
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	metrics.SetWSClients(count)
	h.logger.Debug("websocket client unregistered", slog.Int("clients", count))
}

func (h *Hub) reject(conn *websocket.Conn) {
	h.logger.Warn("websocket connection rejected", slog.Int("max_clients", h.maxClients))
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"))
	conn.Close()
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	metrics.SetWSClients(0)
}
