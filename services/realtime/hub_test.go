package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, channels ...string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		go hub.HandleConn(conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(subscribeRequest{Channels: channels}))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubDeliversToSubscribedChannel(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, BookingChannel("b-1"))

	// Subscription races the publish; give the hub a beat to register.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs[BookingChannel("b-1")]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(BookingChannel("b-1"), "driverAssigned", map[string]string{"driverId": "d-1"})

	env := readEnvelope(t, conn)
	assert.Equal(t, BookingChannel("b-1"), env.Channel)
	assert.Equal(t, "driverAssigned", env.Event)
}

func TestHubScopesChannels(t *testing.T) {
	hub := NewHub()
	driverConn := dialHub(t, hub, DriverChannel("d-1"))
	_ = dialHub(t, hub, DriverChannel("d-2"))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs[DriverChannel("d-1")]) == 1 && len(hub.subs[DriverChannel("d-2")]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(DriverChannel("d-1"), "driverAssigned", nil)
	hub.Publish(DriverChannel("d-1"), "rideCancelled", nil)

	env := readEnvelope(t, driverConn)
	assert.Equal(t, "driverAssigned", env.Event)
	env = readEnvelope(t, driverConn)
	assert.Equal(t, "rideCancelled", env.Event)
}

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.Publish(DriversChannel, "newRideRequest", map[string]int{"passengers": 3})
	})
}
