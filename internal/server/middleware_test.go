package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-stream/internal/stream"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *lockedBuffer {
	t.Helper()
	out := &lockedBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return out
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	logs := captureLogs(t)
	srv := httptest.NewServer(requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/todos", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"status":201`)
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), `"path":"/todos"`)
}

func TestRequestLoggerReportsUpgradeAsSwitchingProtocols(t *testing.T) {
	logs := captureLogs(t)
	hub := stream.NewHub(func(stream.Notification) ([]byte, error) { return nil, nil })
	defer hub.Close()
	srv := httptest.NewServer(requestLogger(hub.Handler("todos")))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("todos") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"msg":"handled"`)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), `"status":101`)
	assert.NotContains(t, logs.String(), `"status":200`)
}
