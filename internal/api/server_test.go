package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/events"
	"github.com/i5heu/GoMonitorQueue/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestStatusAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPool(reg)
	m.SetCapacity("bumpercars", 3)

	s := NewServer("", reg, func() any { return map[string]int{"idle_cars": 2} }, nil, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var status map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 2, status["idle_cars"])

	resp2, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `monitorqueue_queue_capacity{pool_name="bumpercars"} 3`)
}

func TestStatusUnavailable(t *testing.T) {
	s := NewServer("", prometheus.NewRegistry(), nil, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	bus := events.NewBus()
	s := NewServer("", prometheus.NewRegistry(), nil, bus, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	ws, err := websocket.Dial("ws://"+ln.Addr().String()+"/ws", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1 && bus.SubscriberCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	bus.Publish(events.New(events.RiderRiding, 4, 2))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))

	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(msg), &ev))
	assert.Equal(t, events.RiderRiding, ev.Type)
	assert.Equal(t, 4, ev.Rider)
	assert.Equal(t, 2, ev.Car)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWebSocketTypeFilter(t *testing.T) {
	bus := events.NewBus()
	s := NewServer("", prometheus.NewRegistry(), nil, bus, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, ln) }()

	base := "ws://" + ln.Addr().String() + "/ws"
	ws, err := websocket.Dial(base+"?types=rider_returned", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	bus.Publish(events.New(events.RiderRiding, 1, 1))
	bus.Publish(events.New(events.RiderReturned, 1, 1))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, websocket.JSON.Receive(ws, &ev))
	assert.Equal(t, events.RiderReturned, ev.Type)

	bad, err := websocket.Dial(base+"?types=rider_flying", "", "http://localhost/")
	require.NoError(t, err)
	defer bad.Close()
	require.NoError(t, bad.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply map[string]string
	require.NoError(t, websocket.JSON.Receive(bad, &reply))
	assert.Contains(t, reply["error"], "rider_flying")
	assert.Equal(t, 1, bus.SubscriberCount())
}
