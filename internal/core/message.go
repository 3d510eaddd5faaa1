package core

import "time"

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	RoomID    int64
	SenderID  int64
	Sender    string
	Body      string
	Kind      string
	CreatedAt time.Time
}

// Notification is the domain model for a realtime notification push.
type Notification struct {
	ID          int64
	RecipientID int64
	Template    string
	Body        string
	Priority    string
}
