// Package bridge is the composition root: it wires the session client to
// the gateway and owns startup and shutdown ordering.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Eloo-AI/OpenHands/internal/agent"
	"github.com/Eloo-AI/OpenHands/internal/config"
	"github.com/Eloo-AI/OpenHands/internal/gateway"
	"github.com/Eloo-AI/OpenHands/internal/stream"
)

// Bridge ties the single upstream session to the downstream gateway.
type Bridge struct {
	cfg   *config.Config
	log   *slog.Logger
	agent *agent.Client
	httpd *http.Server

	shutdownOnce sync.Once
}

// New builds the object graph. The gateway is the agent's listener; the
// agent is the gateway's session controller.
func New(cfg *config.Config, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}

	streamCfg := stream.Config{
		Endpoint:         stream.EndpointFromBase(cfg.AgentBaseURL),
		HandshakeTimeout: cfg.ConnectTimeout,
		MaxAttempts:      cfg.ReconnectAttempts,
		Logger:           log,
	}
	dial := func(ctx context.Context, sessionID string, onConnect func(agent.Transport), onFrame func(map[string]interface{})) (agent.Transport, error) {
		return stream.Dial(ctx, streamCfg, sessionID, func(conn *stream.Conn) { onConnect(conn) }, onFrame)
	}

	agentClient := agent.NewClient(agent.Options{
		BaseURL: cfg.AgentBaseURL,
		Dial:    dial,
		Logger:  log,
	})
	gw := gateway.New(agentClient, cfg.CORSOrigins, log)
	agentClient.SetListener(gw)

	return &Bridge{
		cfg:   cfg,
		log:   log.With("component", "bridge"),
		agent: agentClient,
		httpd: &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: gw.Handler(),
		},
	}
}

// Agent exposes the session client, mainly for the entrypoint's shutdown
// hook and for tests.
func (b *Bridge) Agent() *agent.Client {
	return b.agent
}

// Start brings the bridge up and serves until Shutdown. Ordering matters:
// the downstream listener must not accept connections unless the upstream
// session exists and its event stream connected.
func (b *Bridge) Start(ctx context.Context) error {
	sessionID, err := b.agent.CreateSession(ctx, b.cfg.InitialInstruction)
	if err != nil {
		return err
	}
	b.log.Info("session created", "session_id", sessionID)

	if err := b.agent.Connect(ctx); err != nil {
		b.agent.Close()
		return err
	}

	// Readiness can take a while (the runtime may still be provisioning);
	// serve downstream connections immediately and log when it arrives.
	go func() {
		if err := b.agent.AwaitReady(0); err == nil {
			b.log.Info("session ready for input")
		}
	}()

	b.log.Info("listening", "addr", b.cfg.ListenAddr())
	if err := b.httpd.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown releases everything: upstream first, then the downstream
// listener. Safe to call multiple times.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.shutdownOnce.Do(func() {
		b.log.Info("shutting down")
		if err := b.agent.Close(); err != nil {
			b.log.Warn("upstream close failed", "error", err)
		}
		if err := b.httpd.Shutdown(ctx); err != nil {
			b.log.Warn("http shutdown failed", "error", err)
		}
	})
}
