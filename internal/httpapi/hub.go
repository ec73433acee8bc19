package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
)

type subscriber struct {
	id   int
	send chan []byte
}

// Hub fans snapshot events out to websocket subscribers. A subscriber that
// falls behind is disconnected instead of blocking the game.
type Hub struct {
	current func() []byte
	logger  *zap.Logger

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int

	srvMu sync.Mutex
	srv   *http.Server
}

// NewHub builds a hub. current returns the frame sent to a new subscriber
// before any broadcast.
func NewHub(current func() []byte, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{current: current, logger: logger, subs: make(map[int]*subscriber)}
}

// Broadcast queues payload for every subscriber.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("ws_subscriber_slow", zap.Int("id", id))
			close(sub.send)
			delete(h.subs, id)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) add() *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &subscriber{id: h.nextID, send: make(chan []byte, subscriberBuffer)}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		close(sub.send)
		delete(h.subs, sub.id)
	}
}

// ServeHTTP upgrades the request and streams events until either side
// closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")
	sub := h.add()
	h.logger.Info("ws_subscribed", zap.Int("id", sub.id), zap.String("remote", r.RemoteAddr))
	defer func() {
		h.remove(sub)
		h.logger.Info("ws_unsubscribed", zap.Int("id", sub.id))
	}()

	// read side only watches for the close frame
	ctx := conn.CloseRead(r.Context())

	if h.current != nil {
		if payload := h.current(); payload != nil {
			if err := write(ctx, conn, payload); err != nil {
				return
			}
		}
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.send:
			if !ok {
				// dropped as slow or hub shutting down
				_ = conn.Close(websocket.StatusGoingAway, "unsubscribed")
				return
			}
			if err := write(ctx, conn, payload); err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// Serve serves the websocket endpoint on ln until Shutdown.
func (h *Hub) Serve(ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/v1/ws", h)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.srvMu.Lock()
	h.srv = srv
	h.srvMu.Unlock()

	h.logger.Info("ws_listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (h *Hub) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.Serve(ln)
}

// Shutdown stops accepting and drops every subscriber.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for id, sub := range h.subs {
		close(sub.send)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	h.srvMu.Lock()
	srv := h.srv
	h.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
