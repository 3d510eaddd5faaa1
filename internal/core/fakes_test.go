package core

import (
	"context"
	"time"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/store"
)

type participantKey struct {
	roomID int64
	userID int64
}

// fakeStorage is an in-memory Storage for hub tests. Setup happens before
// the hub runs; afterwards only the hub goroutine touches it.
type fakeStorage struct {
	rooms        map[int64]*store.Room
	participants map[participantKey]bool
	messages     map[int64][]*store.Message
	nextID       int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		rooms:        make(map[int64]*store.Room),
		participants: make(map[participantKey]bool),
		messages:     make(map[int64][]*store.Message),
	}
}

func (f *fakeStorage) GetRoomByID(_ context.Context, id int64) (*store.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return room, nil
}

func (f *fakeStorage) IsParticipant(_ context.Context, roomID, userID int64) (bool, error) {
	return f.participants[participantKey{roomID: roomID, userID: userID}], nil
}

func (f *fakeStorage) SaveMessage(_ context.Context, msg *store.Message) error {
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	f.messages[msg.RoomID] = append(f.messages[msg.RoomID], msg)
	return nil
}

func (f *fakeStorage) ListMessages(_ context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	all := f.messages[roomID]
	out := make([]*store.Message, 0, len(all))
	for _, m := range all {
		if beforeID != nil && m.ID >= *beforeID {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func busNotification(recipientID int64, template, body, priority string) (bus.Event, error) {
	return bus.NewEvent(bus.TopicNotifications, bus.KindNotificationPush, bus.NotificationPush{
		NotificationID: 1,
		RecipientID:    recipientID,
		Template:       template,
		Body:           body,
		Priority:       priority,
	})
}
