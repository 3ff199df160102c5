package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appLog "calgrid/internal/log"
)

const (
	wsWriteWait  = 5 * time.Second
	wsQueueDepth = 32
)

// Hub manages connected browser WebSocket clients and broadcasts messages
// to them in publish order.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The page is served by the same process; allow any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		queue:   make(chan []byte, wsQueueDepth),
		done:    make(chan struct{}),
	}
}

// Run delivers queued messages until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.queue:
			h.broadcast(msg)
		case <-h.done:
			return
		}
	}
}

// Publish queues msg without blocking. When the queue is full the message
// is dropped; every message carries the latest version, so a later one
// supersedes it.
func (h *Hub) Publish(msg []byte) {
	select {
	case <-h.done:
	case h.queue <- msg:
	default:
		appLog.Warn("ws queue full; message dropped")
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle upgrades the request, sends initial and then keeps the connection
// registered until the client goes away.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Error("ws upgrade failed", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	// Registering and the initial write share the lock so no broadcast can
	// slip in between them.
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return
	default:
	}
	h.clients[conn] = struct{}{}
	if initial != nil {
		if err := h.writeLocked(conn, initial); err != nil {
			h.mu.Unlock()
			return
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	appLog.Info("ws client connected", "remote", conn.RemoteAddr().String(), "clients", total)

	// Incoming messages are ignored; ReadMessage fails once the client
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	total = len(h.clients)
	h.mu.Unlock()
	appLog.Info("ws client disconnected", "remote", conn.RemoteAddr().String(), "clients", total)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = h.writeLocked(conn, msg)
	}
}

// writeLocked writes one message; a failing client is dropped.
func (h *Hub) writeLocked(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		appLog.Error("ws write failed", err, "remote", conn.RemoteAddr().String())
		delete(h.clients, conn)
		conn.Close()
		return err
	}
	return nil
}
