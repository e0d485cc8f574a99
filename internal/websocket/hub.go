package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/semantic"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub manages WebSocket connections and fans events out to them
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	direct     chan directEvent
	done       chan struct{}

	mu    sync.RWMutex
	count int

	upgrader websocket.Upgrader
	config   config.WebSocketConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewHub creates a new WebSocket hub. m may be nil.
func NewHub(cfg config.WebSocketConfig, m *metrics.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, sendBuffer),
		direct:     make(chan directEvent),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins; access is gated by basic auth
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config:  cfg,
		metrics: m,
		logger:  log.WithComponent("websocket"),
	}
}

// Run owns the client set until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.logger.Info("WebSocket client connected",
				zap.String("client_id", client.ID),
				zap.String("client_ip", client.IP),
				zap.Int("total_clients", len(h.clients)),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected",
					zap.String("client_id", client.ID),
					zap.Int("total_clients", len(h.clients)),
				)
			}

		case d := <-h.direct:
			if h.clients[d.client] {
				h.deliver(d.client, d.event)
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				if client.wants(event.Type) {
					h.deliver(client, event)
				}
			}
		}
	}
}

func (h *Hub) deliver(client *Client, event Event) {
	select {
	case client.Send <- event:
	default:
		// Slow consumer
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast queues an event for all clients. Events are dropped when the
// queue is full or the hub has stopped.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case <-h.done:
	case h.broadcast <- event:
	default:
		h.logger.Warn("Event queue full, dropping event", zap.String("type", string(event.Type)))
	}
}

// PIIDetected broadcasts the types and counts of a scrub
func (h *Hub) PIIDetected(origin, sessionID string, summary map[privacy.Type]int) {
	if !h.config.Events.BroadcastDetections {
		return
	}
	total := 0
	for _, n := range summary {
		total += n
	}
	h.Broadcast(Event{
		Type: EventTypePIIDetection,
		Data: PIIDetectionEvent{Origin: origin, SessionID: sessionID, Summary: summary, Total: total},
	})
}

// SemanticProgress broadcasts semantic load progress
func (h *Hub) SemanticProgress(p semantic.Progress) {
	if !h.config.Events.BroadcastProgress {
		return
	}
	h.Broadcast(Event{
		Type: EventTypeSemanticProgress,
		Data: SemanticProgressEvent{Stage: string(p.Stage), Loaded: p.Loaded, Total: p.Total, Done: p.Done},
	})
}

// RequestLog broadcasts a completed request
func (h *Hub) RequestLog(e RequestLogEvent) {
	if !h.config.Events.BroadcastRequests {
		return
	}
	h.Broadcast(Event{Type: EventTypeRequestLog, Data: e, RequestID: e.RequestID})
}

// HandleWebSocket upgrades an authenticated request and starts the client pumps
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="aegis"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan Event, sendBuffer),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	if h.config.Events.BroadcastConnections {
		h.Broadcast(Event{
			Type: EventTypeConnection,
			Data: ConnectionEvent{Action: "connected", ClientID: client.ID, ClientIP: client.IP},
		})
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.config.Username == "" && h.config.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

// writePump delivers events and keepalive pings to one client
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles client messages until the connection closes
func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()

		if h.config.Events.BroadcastConnections {
			h.Broadcast(Event{
				Type: EventTypeConnection,
				Data: ConnectionEvent{Action: "disconnected", ClientID: client.ID, ClientIP: client.IP},
			})
		}
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("Ignoring malformed client message", zap.String("client_id", client.ID))
			continue
		}
		h.handleClientMessage(client, msg)
	}
}

// handleClientMessage processes subscribe and ping messages. Replies are
// routed through the hub so only Run writes to Send.
func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		client.subscribe(msg.Events)
		h.reply(client, Event{Type: EventTypeSubscribed, Data: map[string]interface{}{"events": msg.Events}})

	case "ping":
		h.reply(client, Event{Type: EventTypePong})
	}
}

func (h *Hub) reply(client *Client, event Event) {
	event.Timestamp = time.Now()
	select {
	case h.direct <- directEvent{client: client, event: event}:
	case <-h.done:
	}
}

type directEvent struct {
	client *Client
	event  Event
}

func (c *Client) subscribe(events []EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = make(map[EventType]bool, len(events))
	for _, t := range events {
		c.subscribed[t] = true
	}
}

// wants reports whether the client subscribed to t. Clients without a
// subscription receive everything.
func (c *Client) wants(t EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed == nil || c.subscribed[t]
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
