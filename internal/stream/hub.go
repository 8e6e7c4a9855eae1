package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	defaultBufferSize = 32
)

// Hub fans rendered notifications out to websocket subscribers grouped by
// stream name. Publishing never blocks: a subscriber whose buffer is full is
// disconnected instead.
type Hub struct {
	render     Renderer
	upgrader   websocket.Upgrader
	bufferSize int

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets how many undelivered messages a subscriber may queue.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = check
	}
}

// NewHub creates a hub that renders notifications with render.
func NewHub(render Renderer, opts ...Option) *Hub {
	h := &Hub{
		render: render,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: defaultBufferSize,
		subs:       make(map[string]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type subscriber struct {
	id     string
	stream string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Notify renders n and publishes it on n.Stream. Rendering failures are
// logged and dropped so the caller's request is never affected.
func (h *Hub) Notify(ctx context.Context, n Notification) {
	payload, err := h.render(n)
	if err != nil {
		slog.ErrorContext(ctx, "render notification", "stream", n.Stream, "action", n.Action, "target", n.Target, "err", err)
		return
	}
	delivered := h.Publish(n.Stream, payload)
	slog.DebugContext(ctx, "broadcast", "stream", n.Stream, "action", n.Action, "target", n.Target, "subscribers", delivered)
}

// Publish queues payload for every subscriber of stream and returns how
// many accepted it.
func (h *Hub) Publish(stream string, payload []byte) int {
	var slow []*subscriber
	delivered := 0

	h.mu.Lock()
	for s := range h.subs[stream] {
		select {
		case s.send <- payload:
			delivered++
		default:
			slow = append(slow, s)
			delete(h.subs[stream], s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		slog.Warn("dropping slow subscriber", "stream", stream, "subscriber", s.id)
		s.close()
	}
	return delivered
}

// Subscribers reports the number of live subscribers on stream.
func (h *Hub) Subscribers(stream string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[stream])
}

// Handler upgrades requests to websockets subscribed to stream. The handler
// returns once the connection is gone.
func (h *Hub) Handler(stream string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade", "stream", stream, "err", err)
			return
		}

		s := &subscriber{
			id:     uuid.NewString(),
			stream: stream,
			conn:   conn,
			send:   make(chan []byte, h.bufferSize),
			done:   make(chan struct{}),
		}
		if !h.register(s) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			s.close()
			return
		}
		slog.Info("subscribed", "stream", stream, "subscriber", s.id)

		wg := new(sync.WaitGroup)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.writePump(s)
		}()
		h.readPump(s)
		wg.Wait()
		slog.Info("unsubscribed", "stream", stream, "subscriber", s.id)
	})
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.subs[s.stream] == nil {
		h.subs[s.stream] = make(map[*subscriber]struct{})
	}
	h.subs[s.stream][s] = struct{}{}
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	delete(h.subs[s.stream], s)
	h.mu.Unlock()
	s.close()
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(s *subscriber) {
	defer h.unregister(s)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("subscriber read failed", "subscriber", s.id, "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer s.close()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("subscriber write failed", "subscriber", s.id, "err", err)
				return
			}
		case <-t.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, s := range all {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		s.close()
	}
}
