// Package relay pushes result snapshots of running optimizations to
// websocket subscribers.
package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iwvelando/lineup-optimizer/internal/progress"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed sync.Once
}

func (c *client) close() {
	c.closed.Do(func() { close(c.send) })
}

// Hub fans snapshots out to the subscribers of each run. It remembers the
// latest snapshot per run so late subscribers start from current state.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	latest  map[string][]byte
	done    map[string]bool
}

// NewHub constructs a Hub. Origins are checked by checkOrigin; nil allows
// same-host requests only.
func NewHub(logger *zap.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[string]map[*client]struct{}),
		latest:   make(map[string][]byte),
		done:     make(map[string]bool),
	}
}

// Sink returns a progress sink that publishes to this hub.
func (h *Hub) Sink() progress.Sink {
	return h.Publish
}

// Publish sends a snapshot to the run's subscribers. A terminal snapshot
// closes their connections after delivery. Subscribers that cannot keep up
// are dropped.
func (h *Hub) Publish(r result.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("failed to encode snapshot",
			zap.String("op", "relay.Publish"),
			zap.String("runId", r.RunID),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[r.RunID] = data
	terminal := r.Status.Terminal()
	if terminal {
		h.done[r.RunID] = true
	}
	for c := range h.clients[r.RunID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow subscriber",
				zap.String("op", "relay.Publish"),
				zap.String("runId", r.RunID),
			)
			delete(h.clients[r.RunID], c)
			c.close()
			continue
		}
		if terminal {
			c.close()
		}
	}
	if terminal {
		delete(h.clients, r.RunID)
	}
}

// Forget drops the remembered snapshot of a run.
func (h *Hub) Forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, runID)
	delete(h.done, runID)
}

// Subscribers is the number of open subscriptions to a run.
func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[runID])
}

// Serve upgrades the request and streams runID's snapshots until the run
// finishes or the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, req *http.Request, runID string) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket",
			zap.String("op", "relay.Serve"),
			zap.String("runId", runID),
			zap.Error(err),
		)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if latest, ok := h.latest[runID]; ok {
		c.send <- latest
	}
	if h.done[runID] {
		c.close()
	} else {
		if h.clients[runID] == nil {
			h.clients[runID] = make(map[*client]struct{})
		}
		h.clients[runID][c] = struct{}{}
	}
	h.mu.Unlock()

	go h.readPump(runID, c)
	h.writePump(c)
}

func (h *Hub) unregister(runID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[runID]; ok {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			c.close()
		}
		if len(subs) == 0 {
			delete(h.clients, runID)
		}
	}
}

// readPump discards inbound messages and notices the peer closing.
func (h *Hub) readPump(runID string, c *client) {
	defer h.unregister(runID, c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed",
					zap.String("op", "relay.readPump"),
					zap.String("runId", runID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
}
