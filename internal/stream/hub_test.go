package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-stream/internal/domain"
)

func textRenderer(n Notification) ([]byte, error) {
	return []byte(fmt.Sprintf("%s %s %s", n.Action, n.Target, n.Todo.Title)), nil
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	})
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	return string(msg)
}

func TestNotifyDeliversToEverySubscriber(t *testing.T) {
	hub := NewHub(textRenderer)
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler("todos"))
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 2 }, time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), Notification{
		Stream: "todos",
		Action: ActionAppend,
		Target: "todos-list",
		Todo:   domain.Todo{ID: 1, Title: "Buy milk"},
	})

	assert.Equal(t, "append todos-list Buy milk", readText(t, a))
	assert.Equal(t, "append todos-list Buy milk", readText(t, b))
}

func TestPublishIgnoresOtherStreams(t *testing.T) {
	hub := NewHub(textRenderer)
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler("todos"))
	defer srv.Close()

	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 1 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, hub.Publish("projects", []byte("x")))
	assert.Equal(t, 1, hub.Publish("todos", []byte("x")))
}

func TestNotifySkipsRenderFailures(t *testing.T) {
	hub := NewHub(func(Notification) ([]byte, error) { return nil, errors.New("boom") })
	defer hub.Close()

	assert.NotPanics(t, func() {
		hub.Notify(context.Background(), Notification{Stream: "todos", Action: ActionRemove, Target: "todo_1"})
	})
}

func TestDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(textRenderer)
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler("todos"))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(textRenderer)
	srv := httptest.NewServer(hub.Handler("todos"))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers("todos"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	late := dial(t, srv)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers("todos"))
}

func TestPublishDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(textRenderer, WithBufferSize(1))
	defer hub.Close()
	srv := httptest.NewServer(hub.Handler("todos"))
	defer srv.Close()

	// The client never reads, so the socket and then the buffer fill up.
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 1 }, time.Second, 10*time.Millisecond)

	payload := []byte(strings.Repeat("x", 1<<20))
	start := time.Now()
	for i := 0; i < 64 && hub.Subscribers("todos") > 0; i++ {
		hub.Publish("todos", payload)
	}
	elapsed := time.Since(start)

	assert.Equal(t, 0, hub.Subscribers("todos"))
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 0, hub.Publish("todos", payload))
}
