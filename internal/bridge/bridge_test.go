package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Eloo-AI/OpenHands/internal/agent"
	"github.com/Eloo-AI/OpenHands/internal/config"
)

func testConfig(agentBaseURL string) *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               0,
		AgentBaseURL:       agentBaseURL,
		InitialInstruction: "hello",
		ConnectTimeout:     500 * time.Millisecond,
		ReconnectAttempts:  1,
		CORSOrigins:        []string{"*"},
		LogLevel:           "error",
	}
}

func TestStart_SessionCreationRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"error","message":"no capacity"}`)
	}))
	defer ts.Close()

	b := New(testConfig(ts.URL), nil)
	err := b.Start(context.Background())
	if !errors.Is(err, agent.ErrSessionCreation) {
		t.Fatalf("expected ErrSessionCreation, got %v", err)
	}
}

func TestStart_UpstreamConnectFailureAbortsStartup(t *testing.T) {
	// Conversation creation succeeds, but the event-stream endpoint does
	// not speak websocket: the connect budget is spent and startup fails
	// before the downstream listener ever comes up.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/conversations" {
			io.WriteString(w, `{"status":"ok","conversation_id":"conv-1"}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.Port = freePort(t)

	b := New(cfg, nil)
	err := b.Start(context.Background())
	if err == nil {
		t.Fatal("expected startup to fail when the upstream connect budget is spent")
	}

	// The downstream listener must never have started.
	conn, dialErr := net.DialTimeout("tcp", cfg.ListenAddr(), 100*time.Millisecond)
	if dialErr == nil {
		conn.Close()
		t.Fatal("downstream listener accepted connections despite upstream failure")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"error"}`)
	}))
	defer ts.Close()

	b := New(testConfig(ts.URL), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Shutdown(ctx)
	b.Shutdown(ctx)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
