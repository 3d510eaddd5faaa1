package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/sparkleclean/realtime/internal/store"
)

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	client, _ := env.registerUser(t, "alice", store.RoleClient)
	cleaner, _ := env.registerUser(t, "bob", store.RoleCleaner)

	// Profiles are public; no token needed.
	var profile ProfileResponse
	status := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/profile/client/%d", client.ID), "", nil, &profile)
	if status != http.StatusOK || profile.Username != "alice" || profile.Role != "client" {
		t.Fatalf("unexpected client profile: %d %+v", status, profile)
	}

	status = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/profile/cleaner/%d", cleaner.ID), "", nil, &profile)
	if status != http.StatusOK || profile.Username != "bob" {
		t.Fatalf("unexpected cleaner profile: %d %+v", status, profile)
	}

	// The role path segment constrains the lookup.
	status = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/profile/cleaner/%d", client.ID), "", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for client under cleaner path, got %d", status)
	}

	status = env.doJSON(t, http.MethodGet, "/api/profile/client/abc", "", nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", status)
	}
}

func TestRoomAndMessageEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, clientToken := env.registerUser(t, "alice", store.RoleClient)
	cleaner, _ := env.registerUser(t, "bob", store.RoleCleaner)
	_, strangerToken := env.registerUser(t, "eve", store.RoleClient)

	room, err := env.store.CreateRoom(ctx, 42, client.ID, cleaner.ID)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	for _, body := range []string{"hello", "world"} {
		msg := &store.Message{RoomID: room.ID, SenderID: client.ID, Body: body}
		if err := env.store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("failed to save message: %v", err)
		}
	}

	var rooms []RoomResponse
	status := env.doJSON(t, http.MethodGet, "/api/rooms", clientToken, nil, &rooms)
	if status != http.StatusOK || len(rooms) != 1 || rooms[0].JobID != 42 {
		t.Fatalf("unexpected rooms: %d %+v", status, rooms)
	}

	var messages []MessageResponse
	status = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", room.ID), clientToken, nil, &messages)
	if status != http.StatusOK || len(messages) != 2 || messages[0].Body != "hello" {
		t.Fatalf("unexpected messages: %d %+v", status, messages)
	}

	// Pagination borders on before_id.
	status = env.doJSON(t, http.MethodGet,
		fmt.Sprintf("/api/rooms/%d/messages?before_id=%d", room.ID, messages[1].ID), clientToken, nil, &messages)
	if status != http.StatusOK || len(messages) != 1 || messages[0].Body != "hello" {
		t.Fatalf("unexpected paginated messages: %d %+v", status, messages)
	}

	// Non-participants cannot read history.
	status = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", room.ID), strangerToken, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant, got %d", status)
	}

	status = env.doJSON(t, http.MethodGet, "/api/rooms/999/messages", clientToken, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", status)
	}
}

func TestPaymentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, clientToken := env.registerUser(t, "alice", store.RoleClient)
	cleaner, cleanerToken := env.registerUser(t, "bob", store.RoleCleaner)

	payment := &store.Payment{
		JobID: 42, ClientID: client.ID, CleanerID: cleaner.ID,
		AmountCents: 5000, Status: store.PaymentCompleted,
	}
	if err := env.store.CreatePayment(ctx, payment); err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}

	// Both parties see the payment in their history.
	for _, token := range []string{clientToken, cleanerToken} {
		var history []PaymentResponse
		status := env.doJSON(t, http.MethodGet, "/api/payments/history", token, nil, &history)
		if status != http.StatusOK || len(history) != 1 || history[0].AmountCents != 5000 {
			t.Fatalf("unexpected history: %d %+v", status, history)
		}
	}

	var earnings EarningsResponse
	status := env.doJSON(t, http.MethodGet, "/api/payments/payouts/earnings", cleanerToken, nil, &earnings)
	if status != http.StatusOK || earnings.TotalCents != 5000 {
		t.Fatalf("unexpected earnings: %d %+v", status, earnings)
	}

	// Clients have no payout earnings.
	status = env.doJSON(t, http.MethodGet, "/api/payments/payouts/earnings", clientToken, nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", status)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, token := env.registerUser(t, "alice", store.RoleClient)
	_, otherToken := env.registerUser(t, "bob", store.RoleCleaner)

	n := &store.Notification{RecipientID: user.ID, Template: "job_accepted_client", Body: "accepted"}
	if err := env.store.CreateNotification(ctx, n); err != nil {
		t.Fatalf("failed to create notification: %v", err)
	}

	var list []NotificationResponse
	status := env.doJSON(t, http.MethodGet, "/api/notifications", token, nil, &list)
	if status != http.StatusOK || len(list) != 1 || list[0].Status != "unread" {
		t.Fatalf("unexpected notifications: %d %+v", status, list)
	}

	// Someone else cannot mark it read.
	status = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", n.ID), otherToken, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign notification, got %d", status)
	}

	status = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", n.ID), token, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}

	status = env.doJSON(t, http.MethodGet, "/api/notifications", token, nil, &list)
	if status != http.StatusOK || len(list) != 1 || list[0].Status != "read" {
		t.Fatalf("expected read status, got %d %+v", status, list)
	}
}
