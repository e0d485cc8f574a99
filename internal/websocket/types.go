package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePIIDetection reports PII types and counts found in a scrub
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeSemanticProgress reports semantic backend load progress
	EventTypeSemanticProgress EventType = "semantic_progress"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
	// EventTypeSubscribed acknowledges a subscription change
	EventTypeSubscribed EventType = "subscribed"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PIIDetectionEvent carries types and counts only, never values
type PIIDetectionEvent struct {
	Origin    string               `json:"origin"`
	SessionID string               `json:"session_id,omitempty"`
	Summary   map[privacy.Type]int `json:"summary"`
	Total     int                  `json:"total"`
}

// SemanticProgressEvent mirrors semantic.Progress
type SemanticProgressEvent struct {
	Stage  string `json:"stage"`
	Loaded int64  `json:"loaded"`
	Total  int64  `json:"total"`
	Done   bool   `json:"done"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	RequestID    string            `json:"request_id"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	StatusCode   int               `json:"status_code"`
	ClientIP     string            `json:"client_ip"`
	DurationMS   float64           `json:"duration_ms"`
	ResponseSize int64             `json:"response_size"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string

	mu         sync.Mutex
	subscribed map[EventType]bool // nil means all events
}
