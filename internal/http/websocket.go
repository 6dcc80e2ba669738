package http

import (
	"encoding/json"
	nethttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"go-laue-run-monitor/internal/session"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *nethttp.Request) bool {
		return true
	},
}

// wsMessage is the envelope of every frame the hub writes or reads.
type wsMessage struct {
	Type    string `json:"type"`
	JobID   int64  `json:"job_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	fresh     bool
	writeMu   sync.Mutex
	limiter   *rate.Limiter
	trailing  atomic.Bool
}

// wsHub pushes fresh rows to every open run-monitor page after each poll.
type wsHub struct {
	sessions *session.Manager
	interval time.Duration
	logger   arbor.ILogger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

func newWSHub(sessions *session.Manager, interval time.Duration, logger arbor.ILogger) *wsHub {
	return &wsHub{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
	}
}

func (h *wsHub) handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, created := h.sessions.Acquire(r.URL.Query().Get("session"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	c := &wsClient{conn: conn, sessionID: s.ID, fresh: created}
	if h.interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(h.interval), 1)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	atomic.AddInt64(&wsConnections, 1)
	h.logger.Debug().Str("session", s.ID).Int("clients", total).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		remaining := len(h.clients)
		h.mu.Unlock()
		atomic.AddInt64(&wsConnections, -1)
		_ = conn.Close()
		h.logger.Debug().Str("session", c.session()).Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	h.send(c)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		switch msg.Type {
		case "toggle":
			if sess, ok := h.sessions.Get(c.session()); ok && msg.JobID > 0 {
				sess.Controller.Toggle(msg.JobID)
				h.send(c)
			}
		case "refresh":
			h.send(c)
		}
	}
}

// PublishAll pushes rows to every client, subject to each client's limiter. A push that
// is throttled is retried once the limiter allows it, so the last state always lands.
func (h *wsHub) PublishAll() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.publish(c)
	}
}

func (h *wsHub) publish(c *wsClient) {
	if c.limiter == nil || c.limiter.Allow() {
		h.send(c)
		return
	}
	recordWSPush(false)
	if !c.trailing.CompareAndSwap(false, true) {
		return
	}
	delay := c.limiter.Reserve().Delay()
	time.AfterFunc(delay, func() {
		c.trailing.Store(false)
		h.send(c)
	})
}

// send writes the client's current rows. Pushing keeps the session alive; if it was
// evicted anyway the client is moved to a fresh one and told so through meta.created.
func (h *wsHub) send(c *wsClient) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	s, created := h.sessions.Acquire(c.sessionID)
	c.sessionID = s.ID
	created = created || c.fresh
	c.fresh = false
	data, err := json.Marshal(wsMessage{Type: "rows", Payload: rowsPayload(s, created)})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal rows message")
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Str("session", c.sessionID).Msg("Failed to send rows to client")
		return
	}
	recordWSPush(true)
}

func (c *wsClient) session() string {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sessionID
}

// Close disconnects every client.
func (h *wsHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
}
