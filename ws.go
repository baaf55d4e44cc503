package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"transit-dashboard/internal/logging"
	"transit-dashboard/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 8
	maxInboundSize = 4096
)

// selectionMessage is what clients send to change the shared selection.
// Absent fields are left unchanged.
type selectionMessage struct {
	Route    *string   `json:"route"`
	ViewMode *ViewMode `json:"view_mode"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// liveHub pushes a fresh DashboardView to every connected websocket client
// whenever the snapshot or the selection changes.
type liveHub struct {
	dash     *Dashboard
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

func newLiveHub(dash *Dashboard, logger *slog.Logger, m *metrics.Metrics) *liveHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &liveHub{
		dash:    dash,
		logger:  logger.With(slog.String("component", "live_hub")),
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*liveClient]struct{}),
	}
}

func (h *liveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogError(h.logger, "websocket upgrade failed", err)
		return
	}
	c := &liveClient{conn: conn, send: make(chan []byte, clientSendSize)}

	// queue the current view before registering so it is the first message
	if data, err := h.encodeView(); err == nil {
		c.send <- data
	}
	h.add(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *liveHub) add(c *liveClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetLiveClients(n)
}

// remove unregisters c and closes its send queue. Safe to call twice.
func (h *liveHub) remove(c *liveClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.metrics.SetLiveClients(n)
	}
}

// Clients returns the number of connected clients.
func (h *liveHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *liveHub) encodeView() ([]byte, error) {
	data, err := json.Marshal(h.dash.CurrentView())
	if err != nil {
		logging.LogError(h.logger, "failed to encode dashboard view", err)
		return nil, err
	}
	return data, nil
}

// Broadcast sends the current view to every client. Clients whose queue is
// full are dropped.
func (h *liveHub) Broadcast() {
	data, err := h.encodeView()
	if err != nil {
		return
	}
	h.mu.Lock()
	var slow []*liveClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", slog.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// Close disconnects every client.
func (h *liveHub) Close() {
	h.mu.Lock()
	clients := make([]*liveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

func (h *liveHub) writePump(c *liveClient) {
	defer func() {
		_ = c.conn.Close()
	}()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", slog.String("error", err.Error()))
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *liveHub) readPump(c *liveClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg selectionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("ignoring malformed client message", slog.String("error", err.Error()))
			continue
		}
		if h.applySelection(msg) {
			h.Broadcast()
		}
	}
}

// applySelection reports whether anything was changed.
func (h *liveHub) applySelection(msg selectionMessage) bool {
	changed := false
	if msg.Route != nil {
		h.dash.SelectRoute(*msg.Route)
		changed = true
	}
	if msg.ViewMode != nil {
		if _, err := h.dash.SetViewMode(*msg.ViewMode); err != nil {
			h.logger.Warn("ignoring view mode from client", slog.String("error", err.Error()))
		} else {
			changed = true
		}
	}
	return changed
}
