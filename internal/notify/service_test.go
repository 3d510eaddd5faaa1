package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/store"
	"github.com/sparkleclean/realtime/internal/store/sqlite"
)

type recordingEnqueuer struct {
	ids        []int64
	priorities []string
}

func (r *recordingEnqueuer) EnqueueDeliver(_ context.Context, notificationID int64, priority string) error {
	r.ids = append(r.ids, notificationID)
	r.priorities = append(r.priorities, priority)
	return nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func newTestService(t *testing.T, enq *recordingEnqueuer) (*Service, *sqlite.SQLiteStore, *bus.MemoryBus) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	b := bus.NewMemory()
	t.Cleanup(func() { _ = b.Close() })

	if enq == nil {
		return NewService(st, nil, b, nil), st, b
	}
	return NewService(st, enq, b, nil), st, b
}

func seedRecipient(t *testing.T, st *sqlite.SQLiteStore) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), "alice", "x", store.RoleClient)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func awaitPush(t *testing.T, sub bus.Subscription) bus.NotificationPush {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		var payload bus.NotificationPush
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("bad push payload: %v", err)
		}
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return bus.NotificationPush{}
	}
}

func TestCreateWithEnqueuerDefersDelivery(t *testing.T) {
	enq := &recordingEnqueuer{}
	svc, st, _ := newTestService(t, enq)
	ctx := context.Background()
	user := seedRecipient(t, st)

	n, err := svc.Create(ctx, user.ID, TemplateJobCancelled, "Job #5 was cancelled.", store.PriorityCritical)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(enq.ids) != 1 || enq.ids[0] != n.ID || enq.priorities[0] != string(store.PriorityCritical) {
		t.Fatalf("unexpected enqueue calls: %+v", enq)
	}

	// Delivery has not happened yet.
	got, err := st.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DeliveredAt != nil {
		t.Fatalf("expected undelivered notification, got %+v", got)
	}
}

func TestCreateWithoutEnqueuerDeliversInline(t *testing.T) {
	svc, st, b := newTestService(t, nil)
	ctx := context.Background()
	user := seedRecipient(t, st)

	sub, err := b.Subscribe(ctx, bus.TopicNotifications)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	n, err := svc.Create(ctx, user.ID, TemplatePaymentReceived, "Payment settled.", store.PriorityNormal)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	push := awaitPush(t, sub)
	if push.NotificationID != n.ID || push.RecipientID != user.ID || push.Priority != string(store.PriorityNormal) {
		t.Fatalf("unexpected push: %+v", push)
	}

	got, err := st.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DeliveredAt == nil {
		t.Fatal("expected delivered_at stamp after inline delivery")
	}
}

func TestDeliverTwiceKeepsFirstStamp(t *testing.T) {
	svc, st, b := newTestService(t, nil)
	ctx := context.Background()
	user := seedRecipient(t, st)

	sub, err := b.Subscribe(ctx, bus.TopicNotifications)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	n, err := svc.Create(ctx, user.ID, TemplateJobAcceptedClient, "accepted", store.PriorityNormal)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	awaitPush(t, sub)

	first, err := st.GetNotification(ctx, n.ID)
	if err != nil || first.DeliveredAt == nil {
		t.Fatalf("expected delivered notification: %+v, %v", first, err)
	}

	// Queue redelivery pushes again but never moves the stamp.
	if err := svc.Deliver(ctx, n.ID); err != nil {
		t.Fatalf("redeliver failed: %v", err)
	}
	awaitPush(t, sub)

	second, err := st.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !second.DeliveredAt.Equal(*first.DeliveredAt) {
		t.Fatalf("delivery stamp moved: %v vs %v", second.DeliveredAt, first.DeliveredAt)
	}
}

func TestJobAcceptedNotifiesBothParties(t *testing.T) {
	enq := &recordingEnqueuer{}
	svc, st, _ := newTestService(t, enq)
	ctx := context.Background()

	client, err := st.CreateUser(ctx, "alice", "x", store.RoleClient)
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	cleaner, err := st.CreateUser(ctx, "bob", "x", store.RoleCleaner)
	if err != nil {
		t.Fatalf("seed cleaner: %v", err)
	}

	err = svc.JobAccepted(ctx, bus.JobAccepted{JobID: 7, ClientID: client.ID, CleanerID: cleaner.ID})
	if err != nil {
		t.Fatalf("job accepted failed: %v", err)
	}

	clientList, err := st.ListNotifications(ctx, client.ID, 10)
	if err != nil || len(clientList) != 1 || clientList[0].Template != TemplateJobAcceptedClient {
		t.Fatalf("unexpected client notifications: %v, %v", clientList, err)
	}
	cleanerList, err := st.ListNotifications(ctx, cleaner.ID, 10)
	if err != nil || len(cleanerList) != 1 || cleanerList[0].Template != TemplateJobAcceptedCleaner {
		t.Fatalf("unexpected cleaner notifications: %v, %v", cleanerList, err)
	}
	if len(enq.ids) != 2 {
		t.Fatalf("expected two delivery tasks, got %d", len(enq.ids))
	}
}
