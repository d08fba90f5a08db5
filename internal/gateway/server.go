package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Eloo-AI/OpenHands/internal/agent"
	"github.com/Eloo-AI/OpenHands/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS layer.
	},
}

// SessionController is the upstream session surface the gateway drives.
// Implemented by agent.Client.
type SessionController interface {
	SubmitInstruction(text string) error
	Snapshot() agent.SessionState
}

// Server accepts downstream websocket connections, routes their commands to
// the single upstream session, and fans session notifications back out.
type Server struct {
	controller     SessionController
	allowedOrigins []string
	log            *slog.Logger

	clientsMu sync.RWMutex
	clients   map[string]*client
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// New creates a gateway for the given session controller.
func New(controller SessionController, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		controller:     controller,
		allowedOrigins: allowedOrigins,
		log:            log.With("component", "gateway"),
		clients:        make(map[string]*client),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /state", s.handleGetState)
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin(r))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// handleWebSocket upgrades an HTTP connection and registers it under a
// fresh client id.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	s.log.Debug("client connected", "client_id", c.id)

	// No history replay: a client that connects mid-session observes only
	// deltas from here on and fetches a snapshot with get_session_state.
	go c.writePump()
	go c.readPump()
}

// readPump reads command frames from one connection until it drops.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Warn("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		c.server.handleCommand(c, message)
	}
}

// writePump writes frames to one connection and keeps it alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient deregisters a disconnected client. Other connections are not
// notified.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c.id]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c.id)
	s.clientsMu.Unlock()

	close(c.send)
	s.log.Debug("client disconnected", "client_id", c.id)
}

// handleCommand processes one inbound frame. Bad commands answer the same
// connection with an error frame and never tear it down.
func (s *Server) handleCommand(c *client, raw []byte) {
	msg, err := protocol.ValidateCommand(raw)
	if err != nil {
		s.sendError(c.id, err.Error())
		return
	}

	switch msg.Action {
	case protocol.ActionPrompt:
		var data protocol.PromptData
		json.Unmarshal(msg.Data, &data)
		if err := s.controller.SubmitInstruction(data.Prompt); err != nil {
			s.sendError(c.id, err.Error())
		}

	case protocol.ActionGetSessionState:
		s.sendSessionState(c.id)
	}
}

// sendSessionState replays the current session view to one client.
func (s *Server) sendSessionState(clientID string) {
	snapshot := s.controller.Snapshot()

	phase := snapshot.LatestPhase
	if phase == "" {
		phase = agent.PhaseUnknown
	}
	s.SendTo(clientID, protocol.ActionAgentStateUpdate, protocol.AgentStateUpdateData{
		AgentState: string(phase),
	})
	if snapshot.PreviewURL != "" {
		s.SendTo(clientID, protocol.ActionPreviewURLUpdate, protocol.PreviewURLUpdateData{
			PreviewURL: snapshot.PreviewURL,
		})
	}
}

// Broadcast delivers one frame to every currently registered connection.
// Delivery is best-effort per connection: a slow or broken client is
// skipped, never allowed to abort the fan-out.
func (s *Server) Broadcast(action string, data interface{}) {
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		s.log.Error("broadcast marshal failed", "action", action, "error", err)
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		select {
		case c.send <- raw:
		default:
			s.log.Warn("client send buffer full, frame dropped", "client_id", c.id, "action", action)
		}
	}
}

// SendTo delivers one frame to a single client. A no-op when the id is no
// longer registered; the connection may have raced a disconnect.
func (s *Server) SendTo(clientID, action string, data interface{}) {
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		s.log.Error("send marshal failed", "action", action, "error", err)
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	c, ok := s.clients[clientID]
	s.clientsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- raw:
	default:
		s.log.Warn("client send buffer full, frame dropped", "client_id", clientID, "action", action)
	}
}

func (s *Server) sendError(clientID, message string) {
	s.SendTo(clientID, protocol.ActionError, protocol.ErrorData{Message: message})
}
