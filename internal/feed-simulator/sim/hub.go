package sim

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub serves /ws. New connections first receive the current snapshot.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	snapshot func() []events.GameUpdate

	connections prometheus.Gauge
	sent        prometheus.Counter

	mu      sync.RWMutex
	clients map[*clientConn]struct{}
}

func NewHub(snapshot func() []events.GameUpdate, reg prometheus.Registerer, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:      log,
		snapshot: snapshot,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_ws_connections",
			Help: "Connected feed WebSocket clients",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_ws_messages_sent_total",
			Help: "Feed WebSocket messages sent",
		}),
		clients: make(map[*clientConn]struct{}),
	}
	if reg != nil {
		reg.MustRegister(h.connections, h.sent)
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &clientConn{conn: conn}
	h.add(c)
	defer func() {
		h.remove(c)
		_ = conn.Close()
	}()

	if h.snapshot != nil {
		for _, u := range h.snapshot() {
			h.write(c, u)
		}
	}
	for {
		// Client messages are ignored; reading detects the disconnect.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.connections.Inc()
	h.log.Info("feed client connected", zap.String("remote", c.conn.RemoteAddr().String()))
}

func (h *Hub) remove(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.connections.Dec()
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends every update to every client.
func (h *Hub) Broadcast(updates []events.GameUpdate) {
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, u := range updates {
		for _, c := range targets {
			h.write(c, u)
		}
	}
}

func (h *Hub) write(c *clientConn, u events.GameUpdate) {
	b, err := json.Marshal(u)
	if err != nil {
		h.log.Warn("encode update failed", zap.Error(err))
		return
	}
	if err := c.send(b); err != nil {
		h.log.Warn("ws write failed", zap.Error(err))
		_ = c.conn.Close()
		return
	}
	h.sent.Inc()
}

// Run ticks the simulator and broadcasts its changes until ctx is done.
func Run(ctx context.Context, s *Simulator, h *Hub, every time.Duration, now func() time.Time) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Broadcast(s.Tick(now()))
		}
	}
}
