package transport_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/itzBaowy/ecms-livechat/pkg/transport"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// busServer accepts one websocket connection and drains inbound frames until
// the peer goes away.
type busServer struct {
	srv *httptest.Server

	mu   sync.Mutex
	auth string
}

func startBusServer(t *testing.T) *busServer {
	t.Helper()
	s := &busServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.auth = r.Header.Get("Authorization")
		s.mu.Unlock()

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for {
			if _, _, err := c.Read(context.Background()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *busServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *busServer) authorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func testConfig(url string) transport.Config {
	return transport.Config{
		URL:               url,
		HandshakeTimeout:  2 * time.Second,
		HeartbeatInterval: time.Minute,
		ReadTimeout:       time.Minute,
	}
}

func TestDialPresentsBearerCredential(t *testing.T) {
	server := startBusServer(t)

	conn, err := transport.Dial(context.Background(), testConfig(server.url()), "test-token", func(ctx context.Context, raw []byte) {}, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close(nil)

	if got := server.authorization(); got != "Bearer test-token" {
		t.Errorf("expected bearer credential on the upgrade request, got %q", got)
	}
}

func TestSendAfterCloseNeverPanics(t *testing.T) {
	server := startBusServer(t)

	conn, err := transport.Dial(context.Background(), testConfig(server.url()), "test-token", func(ctx context.Context, raw []byte) {}, nil, newTestLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Run()
	conn.Close(nil)

	// A user action can race closure during a reconnect window; every late
	// Send must be a silent drop, never a crash.
	for i := 0; i < 200; i++ {
		conn.Send([]byte("late frame"))
	}

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Close")
	}
}

func TestCloseIsIdempotentAndSignalsHandler(t *testing.T) {
	server := startBusServer(t)

	closed := make(chan error, 2)
	onClose := func(err error) { closed <- err }
	conn, err := transport.Dial(context.Background(), testConfig(server.url()), "test-token", func(ctx context.Context, raw []byte) {}, onClose, newTestLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Run()

	conn.Close(nil)
	conn.Close(nil)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close handler never invoked")
	}
	select {
	case <-closed:
		t.Fatal("close handler invoked more than once")
	case <-time.After(50 * time.Millisecond):
	}
}
