package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/refract/internal/logging"
)

// writeWait bounds how long a broadcast blocks on one slow client.
const writeWait = 10 * time.Second

// hub tracks connected browsers and fans update messages out to them.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  logging.Logger
}

func newHub(logger logging.Logger) *hub {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	return &hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger.WithComponent("websocket"),
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// broadcast sends msg to every connected client. A failed write drops that
// client; the browser reconnects on its next page load.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			h.logger.Debug(ctx, "Dropping unresponsive client", "error", err.Error())
			h.remove(conn)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusNormalClosure, "server shutting down")
	}
}

// handleWebSocket upgrades a browser connection and keeps it registered
// until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Server.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	s.hub.add(conn)
	defer s.hub.remove(conn)

	// Drain reads to observe the close frame; browsers never send data.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
