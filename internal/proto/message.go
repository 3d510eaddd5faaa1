package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client. V is the
// protocol version the client speaks; zero means the current version.
type Inbound struct {
	Type string          `json:"type"`
	V    int             `json:"v,omitempty"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe_room"
	InboundTypeUnsubscribe = "unsubscribe_room"
	InboundTypeSend        = "send_message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound event names.
const (
	EventNameSubscribed   = "subscribed"
	EventNameUnsubscribed = "unsubscribed"
	EventNameNewMessage   = "new_message"
	EventNameUserJoined   = "user_joined"
	EventNameUserLeft     = "user_left"
	EventNameHistory      = "history"
	EventNameNotification = "notification"
)

// SubscribeData requests a subscription to a specific room.
type SubscribeData struct {
	Room int64 `json:"room"`
}

// SendData is a chat message from the client.
type SendData struct {
	Room int64  `json:"room"`
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage carries one chat message to subscribers.
type EventMessage struct {
	ID     int64  `json:"id,omitempty"`
	Room   int64  `json:"room"`
	UserID int64  `json:"user_id"`
	User   string `json:"user"`
	Text   string `json:"text"`
	Kind   string `json:"kind,omitempty"`
	TS     int64  `json:"ts"`
}

// EventSubscription confirms a subscribe/unsubscribe to the requester.
type EventSubscription struct {
	Room int64 `json:"room"`
}

// EventUserPresence notifies that a user joined or left a room.
type EventUserPresence struct {
	Room   int64  `json:"room"`
	UserID int64  `json:"user_id"`
	User   string `json:"user"`
}

// EventHistory delivers message history on subscribe.
type EventHistory struct {
	Room     int64          `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// EventNotification delivers one notification to its recipient.
type EventNotification struct {
	ID       int64  `json:"id"`
	Template string `json:"template"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
