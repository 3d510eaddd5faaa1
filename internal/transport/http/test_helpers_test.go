package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sparkleclean/realtime/internal/auth"
	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/config"
	"github.com/sparkleclean/realtime/internal/core"
	"github.com/sparkleclean/realtime/internal/log"
	"github.com/sparkleclean/realtime/internal/store"
	"github.com/sparkleclean/realtime/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	bus    *bus.MemoryBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	b := bus.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Default()
	srv := NewServer(hub, authService, st, &cfg, log.Nop())

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, auth: authService, bus: b}
}

// registerUser creates an account through the auth service and returns the
// stored user together with a valid token.
func (e *testEnv) registerUser(t *testing.T, username string, role store.Role) (*store.User, string) {
	t.Helper()

	ctx := context.Background()
	token, err := e.auth.Register(ctx, username, "password123", role)
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	user, err := e.store.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("failed to load %s: %v", username, err)
	}
	return user, token
}

// doJSON issues a request against the test server and decodes the JSON
// response into out when it is non-nil.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}
