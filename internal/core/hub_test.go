package core

import (
	"context"
	"testing"
	"time"

	"github.com/sparkleclean/realtime/internal/store"
)

func TestHubSubscribeBroadcastAndUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil) // Ephemeral mode: no store, in-process bus.
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")

	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 7}
	bob.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 7}

	// Bob should see his own join event (broadcasted to room).
	joinEv := mustEvent(t, bob.Events, EventUserJoined)
	if joinEv.Username != "bob" || joinEv.RoomID != 7 {
		t.Fatalf("unexpected join event: %+v", joinEv)
	}

	// Messages travel through the bus before fanning out.
	alice.Commands <- &Command{
		Kind:   CommandSendMessage,
		RoomID: 7,
		Message: Message{
			Body: "hi",
		},
	}

	msgEv := mustEvent(t, bob.Events, EventNewMessage)
	if msgEv.Message.Body != "hi" || msgEv.Message.RoomID != 7 || msgEv.Message.Sender != "alice" {
		t.Fatalf("unexpected message event: %+v", msgEv)
	}

	// Alice unsubscribes; Bob should see user_left.
	alice.Commands <- &Command{Kind: CommandUnsubscribeRoom, RoomID: 7}
	leftEv := mustEvent(t, bob.Events, EventUserLeft)
	if leftEv.Username != "alice" || leftEv.RoomID != 7 {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}
}

func TestHubDoubleSubscribeProducesError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 7}
	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 7}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadySubscribed {
		t.Fatalf("expected already_subscribed error, got %+v", ev)
	}
}

func TestHubSendWithoutSubscribeProducesError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		RoomID:  7,
		Message: Message{Body: "hi"},
	}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotSubscribed {
		t.Fatalf("expected not_subscribed error, got %+v", ev)
	}
}

func TestHubUnsubscribeUnknownRoomError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandUnsubscribeRoom, RoomID: 99}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found error, got %+v", ev)
	}
}

func TestHubNotificationReachesAllUserConnections(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	// Same user holds two connections; both must receive the push.
	phone := NewClient("phone", 5, "carol")
	laptop := NewClient("laptop", 5, "carol")
	other := NewClient("other", 6, "dave")

	hub.RegisterClient(phone)
	hub.RegisterClient(laptop)
	hub.RegisterClient(other)

	// Give the registrations time to land before publishing.
	time.Sleep(50 * time.Millisecond)

	event, err := busNotification(5, "payment_received", "You got paid", "critical")
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	if err := hub.bus.Publish(ctx, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, c := range []*Client{phone, laptop} {
		ev := mustEvent(t, c.Events, EventNotification)
		if ev.Notification == nil || ev.Notification.RecipientID != 5 || ev.Notification.Body != "You got paid" {
			t.Fatalf("unexpected notification event: %+v", ev)
		}
	}

	select {
	case ev := <-other.Events:
		if ev.Kind == EventNotification {
			t.Fatalf("notification leaked to wrong user: %+v", ev)
		}
	default:
	}
}

func TestHubSubscribeEnforcesParticipation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st := newFakeStorage()
	st.rooms[10] = &store.Room{ID: 10, JobID: 10}
	st.participants[participantKey{roomID: 10, userID: 1}] = true

	hub := NewHub(st, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	mallory := NewClient("m", 2, "mallory")
	hub.RegisterClient(alice)
	hub.RegisterClient(mallory)

	// Unknown room.
	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 404}
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found error, got %+v", ev)
	}

	// Known room, not a participant.
	mallory.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 10}
	ev = mustEvent(t, mallory.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotParticipant {
		t.Fatalf("expected not_participant error, got %+v", ev)
	}

	// Participant subscribes and gets history.
	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 10}
	if ev = mustEvent(t, alice.Events, EventSubscribed); ev.RoomID != 10 {
		t.Fatalf("unexpected subscribed event: %+v", ev)
	}
	mustEvent(t, alice.Events, EventHistory)
}

func TestHubPersistsMessagesAndReplaysHistory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st := newFakeStorage()
	st.rooms[10] = &store.Room{ID: 10, JobID: 10}
	st.participants[participantKey{roomID: 10, userID: 1}] = true
	st.participants[participantKey{roomID: 10, userID: 2}] = true

	hub := NewHub(st, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)
	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 10}
	mustEvent(t, alice.Events, EventSubscribed)

	alice.Commands <- &Command{Kind: CommandSendMessage, RoomID: 10, Message: Message{Body: "first"}}
	msgEv := mustEvent(t, alice.Events, EventNewMessage)
	if msgEv.Message.ID == 0 {
		t.Fatalf("expected persisted message to carry an id, got %+v", msgEv.Message)
	}

	// A late joiner replays the stored history.
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(bob)
	bob.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 10}

	histEv := mustEvent(t, bob.Events, EventHistory)
	if len(histEv.Messages) != 1 || histEv.Messages[0].Body != "first" {
		t.Fatalf("unexpected history event: %+v", histEv)
	}
}

func TestHubUnregisterBroadcastsLeaveAndClosesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 3}
	bob.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 3}
	mustEvent(t, bob.Events, EventUserJoined)

	hub.UnregisterClient(alice)

	leftEv := mustEvent(t, bob.Events, EventUserLeft)
	if leftEv.Username != "alice" || leftEv.RoomID != 3 {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-alice.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected alice's event channel to close after unregister")
		}
	}
}
