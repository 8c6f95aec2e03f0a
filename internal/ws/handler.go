package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veil-waf/veil-edge/internal/handlers"
	"github.com/veil-waf/veil-edge/internal/sse"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// message is the envelope sent to dashboard clients.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Manager tracks active WebSocket connections and relays hub events to them.
type Manager struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	hub         *sse.Hub
	ledger      handlers.Ledger
	logger      *slog.Logger
}

// NewManager creates a new WebSocket manager. ledger may be nil.
func NewManager(hub *sse.Hub, ledger handlers.Ledger, logger *slog.Logger) *Manager {
	return &Manager{
		connections: make(map[*websocket.Conn]struct{}),
		hub:         hub,
		ledger:      ledger,
		logger:      logger,
	}
}

// HandleWS upgrades an HTTP connection to WebSocket, hydrates it with the
// current stats and recent decisions, then streams every new decision.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	topic := host
	if topic == "" {
		topic = sse.AllTopic
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	events, cancel := m.hub.Subscribe(topic)
	m.track(conn)
	defer func() {
		cancel()
		m.untrack(conn)
		conn.Close()
	}()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Reads only detect the close; client messages are ignored.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := m.hydrate(ctx, conn, host); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(conn, message{Type: ev.Type, Data: ev.Data}); err != nil {
				return
			}
		}
	}
}

func (m *Manager) hydrate(ctx context.Context, conn *websocket.Conn, host string) error {
	if m.ledger == nil {
		return nil
	}

	if stats, err := m.ledger.Stats(ctx, host); err == nil {
		data, _ := json.Marshal(stats)
		if err := send(conn, message{Type: "stats", Data: data}); err != nil {
			return err
		}
	} else {
		m.logger.Warn("websocket hydrate stats failed", "err", err)
	}

	recent, err := m.ledger.RecentDecisions(ctx, host, 20)
	if err != nil {
		m.logger.Warn("websocket hydrate decisions failed", "err", err)
		return nil
	}
	for i := len(recent) - 1; i >= 0; i-- {
		data, _ := json.Marshal(recent[i])
		if err := send(conn, message{Type: "decision", Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionCount returns the number of open connections.
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

func (m *Manager) track(conn *websocket.Conn) {
	m.mu.Lock()
	m.connections[conn] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) untrack(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.connections, conn)
	m.mu.Unlock()
}

func send(conn *websocket.Conn, msg message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// ServeHTTP makes Manager usable as an http.Handler.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.HandleWS(w, r)
}
