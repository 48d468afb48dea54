package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub serves one websocket endpoint that registers every connection with
// hub under the product_id query parameter.
func dialHub(t *testing.T, hub *RealtimeHub, productID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(&WSClient{ProductID: r.URL.Query().Get("product_id"), Conn: conn})
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?product_id=" + productID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) RecordEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev RecordEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestEventBusFansOutToSubscribers(t *testing.T) {
	hub := NewRealtimeHub(nil)
	all := dialHub(t, hub, "")
	apples := dialHub(t, hub, "BATCH001")
	pears := dialHub(t, hub, "BATCH002")
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	n := &recordingNotifier{}
	bus := NewEventBus(hub, n, nil)
	bus.Emit(context.Background(), EventRecordCreated, "BATCH001", map[string]string{"product_id": "BATCH001"})

	for _, conn := range []*websocket.Conn{all, apples} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventRecordCreated, ev.Kind)
		assert.Equal(t, "BATCH001", ev.ProductID)
	}

	require.NoError(t, pears.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := pears.ReadMessage()
	assert.Error(t, err)

	assert.Equal(t, []string{EventRecordCreated}, n.kinds())
}

func TestEventBusIgnoresNotifierFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("throttled")}
	bus := NewEventBus(nil, n, nil)
	bus.Emit(context.Background(), EventRecordVerified, "BATCH001", nil)
	assert.Len(t, n.kinds(), 1)

	var nilBus *EventBus
	nilBus.Emit(context.Background(), EventRecordVerified, "BATCH001", nil)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewRealtimeHub(nil)
	conn := dialHub(t, hub, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		hub.Broadcast("BATCH001", RecordEvent{Kind: EventRecordCreated})
		return hub.ClientCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
