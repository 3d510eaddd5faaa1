package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage notifies clients about a chat message in a room.
	EventNewMessage EventKind = iota
	// EventSubscribed confirms a room subscription to the requesting client.
	EventSubscribed
	// EventUnsubscribed confirms a dropped subscription.
	EventUnsubscribed
	// EventUserJoined notifies room subscribers that a user subscribed.
	EventUserJoined
	// EventUserLeft notifies room subscribers that a user unsubscribed.
	EventUserLeft
	// EventHistory delivers message history to a client upon subscribing.
	EventHistory
	// EventNotification delivers a notification to its recipient.
	EventNotification
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	RoomID       int64
	UserID       int64
	Username     string
	Message      Message
	Messages     []Message // For EventHistory
	Notification *Notification
	Error        *CoreError
}
