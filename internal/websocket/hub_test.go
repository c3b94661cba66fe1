package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	logger := logging.NewNoOpLogger()
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(NewHandler(hub, ids.NewSequentialGenerator("ws"), logger))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

// dial connects to the test server and consumes the welcome event, so the
// client is guaranteed registered when dial returns.
func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readEvent(t, conn)
	require.Equal(t, EventConnected, welcome.Type)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestClientReceivesWelcome(t *testing.T) {
	hub, server := newTestHub(t)

	dial(t, server, "")
	assert.Equal(t, 1, hub.ClientCount())
}

func TestAlertEventsReachSubscribers(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	hub.AlertCreated(types.Alert{
		ID:              "alert-1",
		Severity:        types.SeverityWarning,
		Title:           "Latency climbing",
		AffectedMetrics: []string{"checkout.latency"},
	})

	event := readEvent(t, conn)
	assert.Equal(t, EventAlertCreated, event.Type)
	assert.Equal(t, string(types.SeverityWarning), event.Severity)
	assert.Equal(t, []string{"checkout.latency"}, event.Metrics)
	assert.NotNil(t, event.Data)
}

func TestAlertLifecycleEventTypes(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	alert := types.Alert{ID: "alert-1", Severity: types.SeverityCritical}
	hub.AlertCreated(alert)
	hub.AlertAcknowledged(alert)
	hub.AlertResolved(alert)

	assert.Equal(t, EventAlertCreated, readEvent(t, conn).Type)
	assert.Equal(t, EventAlertAcknowledged, readEvent(t, conn).Type)
	assert.Equal(t, EventAlertResolved, readEvent(t, conn).Type)
}

func TestMetricFilterSuppressesOtherMetrics(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "?metric=cpu.pct")

	hub.AlertCreated(types.Alert{ID: "a-mem", AffectedMetrics: []string{"mem.pct"}})
	hub.AlertCreated(types.Alert{ID: "a-cpu", AffectedMetrics: []string{"cpu.pct"}})

	event := readEvent(t, conn)
	assert.Equal(t, []string{"cpu.pct"}, event.Metrics)
}

func TestSeverityFilterSuppressesOtherSeverities(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "?severity=critical")

	hub.AlertCreated(types.Alert{ID: "a-warn", Severity: types.SeverityWarning})
	hub.AlertCreated(types.Alert{ID: "a-crit", Severity: types.SeverityCritical})

	event := readEvent(t, conn)
	assert.Equal(t, string(types.SeverityCritical), event.Severity)
}

func TestAnomalyEventsBypassSeverityFilters(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "?severity=critical")

	hub.AnomalyDetected(types.AnomalyRecord{
		ID:           "anomaly-1",
		MetricName:   "api.latency",
		AnomalyScore: 4.2,
	})

	event := readEvent(t, conn)
	assert.Equal(t, EventAnomalyDetected, event.Type)
	assert.Equal(t, []string{"api.latency"}, event.Metrics)
}

func TestSubscribeNarrowsFilters(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":   "subscribe",
		"metric": "db.connections",
	}))
	// The pong answer doubles as a barrier: once it arrives the subscribe
	// message has been applied.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, EventPong, readEvent(t, conn).Type)

	hub.AlertCreated(types.Alert{ID: "a-other", AffectedMetrics: []string{"cpu.pct"}})
	hub.AlertCreated(types.Alert{ID: "a-db", AffectedMetrics: []string{"db.connections"}})

	event := readEvent(t, conn)
	assert.Equal(t, []string{"db.connections"}, event.Metrics)
}

func TestUnsubscribeClearsFilters(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "?metric=cpu.pct")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.Equal(t, EventPong, readEvent(t, conn).Type)

	hub.AlertCreated(types.Alert{ID: "a-mem", AffectedMetrics: []string{"mem.pct"}})

	event := readEvent(t, conn)
	assert.Equal(t, []string{"mem.pct"}, event.Metrics)
}

func TestClientCountTracksDisconnects(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server, "")
	dial(t, server, "")
	require.Equal(t, 2, hub.ClientCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	logger := logging.NewNoOpLogger()
	hub := NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(NewHandler(hub, nil, logger))
	defer server.Close()

	conn := dial(t, server, "")
	cancel()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// The server closed the connection, so the next read fails.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	assert.Error(t, conn.ReadJSON(&event))
}
