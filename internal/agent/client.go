package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Taxonomy of session errors. Callers match with errors.Is.
var (
	// ErrSessionCreation wraps a rejected conversation-creation call.
	// Fatal to bridge startup; never retried automatically.
	ErrSessionCreation = errors.New("session creation rejected")

	// ErrNotConnected means an operation needing an active session ran
	// before one exists.
	ErrNotConnected = errors.New("no active session")

	// ErrEmptyInstruction means SubmitInstruction was called with an empty
	// string; nothing is sent upstream.
	ErrEmptyInstruction = errors.New("instruction must not be empty")

	// ErrReadinessTimeout means an AwaitReady deadline elapsed before the
	// session became ready for input.
	ErrReadinessTimeout = errors.New("timed out waiting for session readiness")
)

// Listener receives the session notifications derived from upstream events.
// The gateway implements it once and fans each callback out to downstream
// clients.
type Listener interface {
	OnMessage(message string)
	OnAgentStateUpdate(state string)
	OnPreviewURLUpdate(previewURL string)
	OnError(message string)
	OnActionPerformed(action string)
	OnObservationPerformed(observation string)
}

// Transport is the duplex event stream reaching the agent runtime. The
// concrete implementation lives in internal/stream; the Client only needs
// emit and disconnect.
type Transport interface {
	Emit(frame interface{}) error
	Close() error
}

// DialFunc opens the duplex event stream for a session. Implementations own
// the handshake timeout and the bounded reconnection budget; once that
// budget is exhausted the returned error is fatal to the session. onConnect
// fires with the live transport after every successful handshake, onFrame
// once per received frame in receipt order.
type DialFunc func(ctx context.Context, sessionID string, onConnect func(Transport), onFrame func(map[string]interface{})) (Transport, error)

// DefaultInitialInstruction is sent when a session is created without an
// explicit first instruction.
const DefaultInitialInstruction = "Wait for next command"

// Options configures a Client.
type Options struct {
	// BaseURL is the HTTP base of the agent runtime, e.g. http://127.0.0.1:3000.
	BaseURL string
	// Dial opens the upstream event stream.
	Dial DialFunc
	// HTTPClient is used for session creation. Defaults to a client with a
	// 30s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client owns the single upstream session: it creates it, holds the duplex
// connection, applies every received frame to the session state, and
// publishes derived notifications to its Listener. One Client per process.
type Client struct {
	baseURL string
	dial    DialFunc
	httpc   *http.Client
	log     *slog.Logger

	mu        sync.Mutex
	state     SessionState
	readyCh   chan struct{} // closed when ReadyForInput flips true
	transport Transport
	listener  Listener
	closed    bool
}

// NewClient creates a session client. The listener is wired separately (see
// SetListener) because the gateway and the client reference each other.
func NewClient(opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: opts.BaseURL,
		dial:    opts.Dial,
		httpc:   httpc,
		log:     log.With("component", "agent"),
		readyCh: make(chan struct{}),
	}
}

// SetListener installs the notification sink. Must be called before Connect.
func (c *Client) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session state.
func (c *Client) Snapshot() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type createConversationRequest struct {
	SelectedRepository *string  `json:"selected_repository"`
	InitialUserMsg     string   `json:"initial_user_msg"`
	ImageURLs          []string `json:"image_urls"`
}

type createConversationResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
}

// CreateSession asks the agent runtime for a new conversation and records
// the returned id. Calling it twice creates two upstream conversations; the
// bridge calls it exactly once at startup.
func (c *Client) CreateSession(ctx context.Context, initialInstruction string) (string, error) {
	if initialInstruction == "" {
		initialInstruction = DefaultInitialInstruction
	}

	body, err := json.Marshal(createConversationRequest{
		InitialUserMsg: initialInstruction,
	})
	if err != nil {
		return "", fmt.Errorf("marshal creation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/conversations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build creation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrSessionCreation, err)
	}

	var parsed createConversationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrSessionCreation, err)
	}
	if parsed.Status != "ok" || parsed.ConversationID == "" {
		return "", fmt.Errorf("%w: %s", ErrSessionCreation, string(raw))
	}

	c.mu.Lock()
	c.state.SessionID = parsed.ConversationID
	c.mu.Unlock()

	c.log.Debug("conversation created", "session_id", parsed.ConversationID)
	return parsed.ConversationID, nil
}

type initFrame struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
	LatestEventID  int    `json:"latest_event_id"`
}

type instructionArgs struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls"`
	Timestamp string   `json:"timestamp"`
}

type instructionFrame struct {
	Action string          `json:"action"`
	Args   instructionArgs `json:"args"`
}

// Connect opens the duplex event stream for the created session. Reconnect
// attempts are bounded by the transport; an exhausted budget surfaces here
// as a fatal error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.state.SessionID
	c.mu.Unlock()
	if sessionID == "" {
		return fmt.Errorf("%w: create a session before connecting", ErrNotConnected)
	}

	transport, err := c.dial(ctx, sessionID, func(t Transport) { c.onConnect(sessionID, t) }, c.handleFrame)
	if err != nil {
		return fmt.Errorf("connect upstream: %w", err)
	}

	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()
	return nil
}

// onConnect runs after every successful handshake, including reconnects:
// the init frame scopes the stream to the session and -1 suppresses replay
// of prior events.
func (c *Client) onConnect(sessionID string, transport Transport) {
	err := transport.Emit(initFrame{
		Action:         "init",
		ConversationID: sessionID,
		LatestEventID:  -1,
	})
	if err != nil {
		c.log.Error("init frame failed", "error", err)
	}
}

// handleFrame applies one raw upstream frame: classify, mutate state, then
// notify the listener outside the lock. Frames arrive in receipt order on
// the transport's read loop.
func (c *Client) handleFrame(frame map[string]interface{}) {
	event := Classify(frame)

	c.mu.Lock()
	listener := c.listener
	var notify func(Listener)

	switch event.Kind {
	case KindStatusUpdate:
		c.state.Status = event.Text
		c.log.Debug("status update", "level", event.Level, "message", event.Text)
		// Status frames re-publish the current session view, the same way
		// a state-change frame would.
		snapshot := c.state
		level := event.Level
		text := event.Text
		notify = func(l Listener) {
			if level == "error" {
				l.OnError(text)
			}
			publishState(l, snapshot)
		}

	case KindAgentMessage:
		text := event.Text
		notify = func(l Listener) { l.OnMessage(text) }

	case KindPreviewURLUpdate:
		c.state.PreviewURL = event.URL
		url := event.URL
		notify = func(l Listener) { l.OnPreviewURLUpdate(url) }

	case KindPhaseChanged:
		c.applyPhaseLocked(event.Origin, event.Phase)
		phase := string(event.Phase)
		notify = func(l Listener) {
			l.OnAgentStateUpdate(phase)
			l.OnObservationPerformed("agent_state_changed")
		}

	case KindActionPerformed:
		action := event.Action
		notify = func(l Listener) { l.OnActionPerformed(action) }

	case KindUnclassified:
		c.log.Debug("unclassified frame dropped", "frame", frame)
	}
	c.mu.Unlock()

	if notify != nil && listener != nil {
		notify(listener)
	}
}

// publishState mirrors the session view to the listener: the latest phase
// always, the preview URL when one is known.
func publishState(l Listener, s SessionState) {
	phase := s.LatestPhase
	if phase == "" {
		phase = PhaseUnknown
	}
	l.OnAgentStateUpdate(string(phase))
	if s.PreviewURL != "" {
		l.OnPreviewURLUpdate(s.PreviewURL)
	}
}

// applyPhaseLocked records a phase observation and recomputes readiness.
// Caller holds c.mu.
func (c *Client) applyPhaseLocked(origin Origin, phase Phase) {
	switch origin {
	case OriginEnvironment:
		c.state.EnvironmentPhase = phase
	default:
		c.state.AgentPhase = phase
	}
	c.state.LatestPhase = phase
	c.setReadyLocked(phase == PhaseAwaitingUserInput)
}

// setReadyLocked flips the derived readiness bit, waking AwaitReady callers
// on a false→true transition. Caller holds c.mu.
func (c *Client) setReadyLocked(ready bool) {
	if ready == c.state.ReadyForInput {
		return
	}
	c.state.ReadyForInput = ready
	if ready {
		close(c.readyCh)
	} else {
		c.readyCh = make(chan struct{})
	}
}

// AwaitReady blocks until the session is ready for input. A zero timeout
// waits indefinitely; the upstream session may never reach
// awaiting_user_input, so callers that cannot afford to hang should pass a
// deadline. Returns ErrReadinessTimeout when the deadline elapses first.
func (c *Client) AwaitReady(timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		c.mu.Lock()
		if c.state.ReadyForInput {
			c.mu.Unlock()
			return nil
		}
		ready := c.readyCh
		c.mu.Unlock()

		select {
		case <-ready:
		case <-deadline:
			return ErrReadinessTimeout
		}
	}
}

// SubmitInstruction sends one instruction upstream. Submitting work implies
// the session is no longer idle, so readiness is cleared before the frame
// goes out. There is no way to retract an instruction once emitted.
func (c *Client) SubmitInstruction(text string) error {
	if text == "" {
		return ErrEmptyInstruction
	}

	c.mu.Lock()
	if c.state.SessionID == "" || c.transport == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.setReadyLocked(false)
	transport := c.transport
	c.mu.Unlock()

	return transport.Emit(instructionFrame{
		Action: "message",
		Args: instructionArgs{
			Content:   text,
			ImageURLs: []string{},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Close disconnects the upstream transport and releases the creation HTTP
// client's idle connections. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	transport := c.transport
	c.transport = nil
	c.mu.Unlock()

	c.httpc.CloseIdleConnections()
	if transport != nil {
		return transport.Close()
	}
	return nil
}
