package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/semantic"
)

type received struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

func testConfig() config.WebSocketConfig {
	cfg := config.GetDefaults().WebSocket
	cfg.Username = "admin"
	cfg.Password = "secret"
	cfg.Events.BroadcastConnections = false
	return cfg
}

func startHub(t *testing.T, cfg config.WebSocketConfig, m *metrics.Metrics) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, m, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))

	before := hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_RejectsBadCredentials(t *testing.T) {
	_, url := startHub(t, testConfig(), nil)

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_BroadcastsDetections(t *testing.T) {
	m := metrics.New()
	hub, url := startHub(t, testConfig(), m)
	conn := dial(t, hub, url)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSClients))

	hub.PIIDetected("proxy", "s1", map[privacy.Type]int{privacy.TypeEmail: 2, privacy.TypeSSN: 1})

	ev := read(t, conn)
	assert.Equal(t, EventTypePIIDetection, ev.Type)

	var data PIIDetectionEvent
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "proxy", data.Origin)
	assert.Equal(t, "s1", data.SessionID)
	assert.Equal(t, 3, data.Total)
	assert.Equal(t, 2, data.Summary[privacy.TypeEmail])
}

func TestHub_Subscription(t *testing.T) {
	hub, url := startHub(t, testConfig(), nil)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Events: []EventType{EventTypeSemanticProgress}}))
	assert.Equal(t, EventTypeSubscribed, read(t, conn).Type)

	hub.PIIDetected("api", "", map[privacy.Type]int{privacy.TypeEmail: 1})
	hub.SemanticProgress(semantic.Progress{Stage: semantic.StageModel, Loaded: 5, Total: 10})

	ev := read(t, conn)
	require.Equal(t, EventTypeSemanticProgress, ev.Type)

	var data SemanticProgressEvent
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "model", data.Stage)
	assert.Equal(t, int64(5), data.Loaded)
}

func TestHub_DisabledEventsAreNotSent(t *testing.T) {
	cfg := testConfig()
	cfg.Events.BroadcastDetections = false
	hub, url := startHub(t, cfg, nil)
	conn := dial(t, hub, url)

	hub.PIIDetected("api", "", map[privacy.Type]int{privacy.TypeEmail: 1})
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))

	assert.Equal(t, EventTypePong, read(t, conn).Type)
}

func TestHub_ConnectionEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Events.BroadcastConnections = true
	hub, url := startHub(t, cfg, nil)

	watcher := dial(t, hub, url)
	ev := read(t, watcher)
	require.Equal(t, EventTypeConnection, ev.Type)

	other := dial(t, hub, url)
	ev = read(t, watcher)
	require.Equal(t, EventTypeConnection, ev.Type)

	var data ConnectionEvent
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "connected", data.Action)
	assert.NotEmpty(t, data.ClientID)

	require.NoError(t, other.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
