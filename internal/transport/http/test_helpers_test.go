package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-realtime/internal/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/config"
	"github.com/vovakirdan/wirechat-realtime/internal/core"
	"github.com/vovakirdan/wirechat-realtime/internal/proto"
	"github.com/vovakirdan/wirechat-realtime/internal/store/sqlite"
)

const testSecret = "testsecret"

// testSDP is the smallest session description pion accepts.
const testSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st *sqlite.SQLiteStore, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

type testServer struct {
	*httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	auth  *auth.Service
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.MetricsEnabled = true
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st, testSecret)
	disabledLogger := zerolog.Nop()

	hub := core.NewHub(core.Options{Store: st, Logger: &disabledLogger})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, authService, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return &testServer{Server: ts, hub: hub, store: st, auth: authService}
}

func (ts *testServer) wsURL() string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

// dial connects as user with a bearer header and waits for the user's own
// online presence so the connection is registered before the test proceeds.
func (ts *testServer) dial(t *testing.T, ctx context.Context, user string) *websocket.Conn {
	t.Helper()

	token, err := ts.auth.IssueToken(user, user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	conn, _, err := websocket.Dial(ctx, ts.wsURL(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	for {
		out := readUntil(t, ctx, conn, proto.EventPresenceUpdate)
		var p proto.PresenceUpdate
		decodeData(t, out, &p)
		if p.UserID == user && p.Status == "online" {
			return conn
		}
	}
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads outbound envelopes until one carries the named event.
// Protocol errors stop the search.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) proto.Outbound {
	t.Helper()

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Type == proto.OutboundTypeError || out.Event == event {
			return out
		}
	}
}

func decodeData(t *testing.T, out proto.Outbound, v any) {
	t.Helper()

	raw, err := json.Marshal(out.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s data: %v", out.Event, err)
	}
}

func sessionDescription(typ string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"type": typ, "sdp": testSDP})
	return raw
}
