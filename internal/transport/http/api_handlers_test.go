package http

import (
	"net/http"
	"testing"

	"github.com/sparkleclean/realtime/internal/store"
)

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var resp AuthResponse
	status := env.doJSON(t, http.MethodPost, "/api/register", "",
		RegisterRequest{Username: "alice", Password: "password123", Role: "client"}, &resp)
	if status != http.StatusCreated || resp.Token == "" {
		t.Fatalf("expected 201 with token, got %d %+v", status, resp)
	}

	// Duplicate username.
	status = env.doJSON(t, http.MethodPost, "/api/register", "",
		RegisterRequest{Username: "alice", Password: "password123", Role: "client"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	// Role outside client/cleaner fails binding.
	status = env.doJSON(t, http.MethodPost, "/api/register", "",
		RegisterRequest{Username: "bob", Password: "password123", Role: "admin"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice", store.RoleClient)

	var resp AuthResponse
	status := env.doJSON(t, http.MethodPost, "/api/login", "",
		LoginRequest{Username: "alice", Password: "password123"}, &resp)
	if status != http.StatusOK || resp.Token == "" {
		t.Fatalf("expected 200 with token, got %d %+v", status, resp)
	}

	status = env.doJSON(t, http.MethodPost, "/api/login", "",
		LoginRequest{Username: "alice", Password: "wrong"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}

	status = env.doJSON(t, http.MethodPost, "/api/login", "",
		LoginRequest{Username: "nobody", Password: "password123"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	if status := env.doJSON(t, http.MethodGet, "/api/rooms", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := env.doJSON(t, http.MethodGet, "/api/rooms", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
}
