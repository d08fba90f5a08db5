// Package stream implements the upstream duplex event connection: a
// websocket client with a bounded reconnection budget, ordered frame
// delivery, and JSON frame emit.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxAttempts      = 3
	defaultRetryInterval    = 2 * time.Second
	writeDeadline           = 10 * time.Second
)

// ErrClosed is returned by Emit after the connection is closed or its
// reconnection budget is exhausted.
var ErrClosed = errors.New("stream: connection closed")

// Config controls dialing and the reconnection policy.
type Config struct {
	// Endpoint is the websocket URL of the event stream, without query
	// parameters. See EndpointFromBase.
	Endpoint string
	// HandshakeTimeout bounds each connect attempt.
	HandshakeTimeout time.Duration
	// MaxAttempts is the connect/reconnect attempt budget. Once exhausted
	// the connection is dead for good; there is no infinite retry.
	MaxAttempts int
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
	Logger        *slog.Logger
}

func (c *Config) fillDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// EndpointFromBase derives the event-stream endpoint from an HTTP base URL.
func EndpointFromBase(baseURL string) string {
	ws := strings.Replace(baseURL, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)
	return strings.TrimRight(ws, "/") + "/socket.io/"
}

// Conn is one upstream event connection. A single read loop delivers frames
// in receipt order; writes are serialized by a mutex.
type Conn struct {
	cfg       Config
	target    string
	onConnect func(*Conn)
	onFrame   func(map[string]interface{})
	log       *slog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

// Dial connects the event stream for a session, retrying up to the
// configured attempt budget. onConnect runs after every successful
// handshake (initial and reconnect), before any frame is delivered.
func Dial(ctx context.Context, cfg Config, sessionID string, onConnect func(*Conn), onFrame func(map[string]interface{})) (*Conn, error) {
	cfg.fillDefaults()

	query := url.Values{}
	query.Set("conversation_id", sessionID)
	query.Set("latest_event_id", "-1")
	target := cfg.Endpoint + "?" + query.Encode()

	c := &Conn{
		cfg:       cfg,
		target:    target,
		onConnect: onConnect,
		onFrame:   onFrame,
		log:       cfg.Logger.With("component", "stream"),
	}

	ws, err := c.dialAttempts(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	if c.onConnect != nil {
		c.onConnect(c)
	}
	go c.readLoop(ws)

	return c, nil
}

// dialAttempts tries the handshake up to MaxAttempts times.
func (c *Conn) dialAttempts(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		ws, _, err := dialer.DialContext(ctx, c.target, nil)
		if err == nil {
			return ws, nil
		}
		lastErr = err
		c.log.Warn("dial failed", "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "error", err)

		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("handshake failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// readLoop delivers frames until the connection drops, then spends the
// reconnection budget. Frames are delivered from this single goroutine, so
// handlers observe them in receipt order.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var frame map[string]interface{}
		if err := ws.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}

			c.log.Warn("read failed, reconnecting", "error", err)
			next, dialErr := c.dialAttempts(context.Background())
			if dialErr != nil {
				c.log.Error("reconnection budget exhausted", "error", dialErr)
				c.Close()
				return
			}

			c.mu.Lock()
			c.ws = next
			c.mu.Unlock()

			if c.onConnect != nil {
				c.onConnect(c)
			}
			ws = next
			continue
		}

		if frame != nil && c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

// Emit writes one JSON frame upstream.
func (c *Conn) Emit(frame interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ws == nil {
		return ErrClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.ws.WriteJSON(frame)
}

// Close tears the connection down. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}
