package notify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/keepstack/keepsync/pkg/errors"
	"github.com/keepstack/keepsync/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	sendBufferSize = 64
)

// Event is a JSON payload pushed to connected device sessions.
type Event struct {
	Event        string        `json:"event"`
	Notification *Notification `json:"notification,omitempty"`
	Tap          *TapEvent     `json:"tap,omitempty"`
}

const (
	// EventNotification carries a freshly delivered insight notification.
	EventNotification = "notification"
	// EventNavigate instructs the app to open the tapped insight.
	EventNavigate = "navigate"
)

// Hub pushes notification and navigation events to connected device sessions
// over WebSocket. It implements both Deliverer and Navigator: a session being
// connected is what makes in-app navigation possible.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	onReady func()
}

type hubClient struct {
	hub    *Hub
	socket *websocket.Conn
	send   chan Event
	once   sync.Once
}

// NewHub constructs a device session hub.
func NewHub() *Hub {
	return &Hub{
		log:     logger.WithModule("hub"),
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the device
// session. Blocks until the session disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{
		hub:    h,
		socket: conn,
		send:   make(chan Event, sendBufferSize),
	}
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Ready reports whether at least one device session is connected.
func (h *Hub) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// Sessions returns the number of connected device sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver pushes the notification to every connected session. Having no
// session connected is reported as a delivery failure. The failure counts
// toward cycle stats and metrics only: the cursor still advances past the
// insight, so it is not redelivered on the next cycle.
func (h *Hub) Deliver(_ context.Context, notification Notification) error {
	event := Event{Event: EventNotification, Notification: &notification}
	if h.broadcast(event) == 0 {
		return apperrors.ErrDelivery.WithInternal(fmt.Errorf("hub: no device session connected"))
	}
	return nil
}

// Navigate pushes a navigate command for the tapped insight to the connected
// sessions.
func (h *Hub) Navigate(event TapEvent) error {
	if h.broadcast(Event{Event: EventNavigate, Tap: &event}) == 0 {
		return apperrors.ErrNavigationNotReady.WithInternal(fmt.Errorf("hub: no device session connected"))
	}
	return nil
}

func (h *Hub) broadcast(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		select {
		case client.send <- event:
			delivered++
		default:
			h.log.Warn("dropping backpressured device session")
			client.close()
		}
	}
	return delivered
}

// SetReadyHook registers a callback invoked whenever a device session
// connects. Used to flush navigation deferred while no session was ready.
func (h *Hub) SetReadyHook(fn func()) {
	h.mu.Lock()
	h.onReady = fn
	h.mu.Unlock()
}

func (h *Hub) register(client *hubClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	hook := h.onReady
	h.mu.Unlock()

	h.log.Info("device session connected", zap.Int("sessions", h.Sessions()))
	if hook != nil {
		hook()
	}
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	h.log.Info("device session disconnected", zap.Int("sessions", h.Sessions()))
}

func (c *hubClient) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected session close", zap.Error(err))
			}
			return
		}
	}
}

func (c *hubClient) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *hubClient) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if idx := strings.IndexByte(host, '/'); idx >= 0 {
		host = host[:idx]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
