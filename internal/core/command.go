package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage delivers a chat message to room subscribers.
	CommandSendMessage CommandKind = iota
	// CommandSubscribeRoom opens a subscription to a room on this connection.
	CommandSubscribeRoom
	// CommandUnsubscribeRoom drops the subscription to a room.
	CommandUnsubscribeRoom
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	RoomID  int64
	Message Message
}
