package bus

// Event kinds per topic.
const (
	KindJobAccepted      = "job.accepted"
	KindJobCancelled     = "job.cancelled"
	KindMessageSent      = "message.sent"
	KindNotificationPush = "notification.push"
	KindPaymentCompleted = "payment.completed"
)

// JobAccepted is published on the jobs topic when a cleaner accepts a job.
// Room creation and party notifications hang off this event.
type JobAccepted struct {
	JobID     int64  `json:"job_id"`
	ClientID  int64  `json:"client_id"`
	CleanerID int64  `json:"cleaner_id"`
	Address   string `json:"address,omitempty"`
}

// JobCancelled is published on the jobs topic when either party cancels.
type JobCancelled struct {
	JobID       int64  `json:"job_id"`
	CancelledBy int64  `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// MessageSent is published on the chat topic for every persisted message.
// Gateways fan it out to connections subscribed to the room.
type MessageSent struct {
	MessageID int64  `json:"message_id"`
	RoomID    int64  `json:"room_id"`
	SenderID  int64  `json:"sender_id"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	SentAt    int64  `json:"sent_at"`
}

// NotificationPush is published on the notifications topic once a
// notification has been persisted and is ready for realtime delivery.
type NotificationPush struct {
	NotificationID int64  `json:"notification_id"`
	RecipientID    int64  `json:"recipient_id"`
	Template       string `json:"template"`
	Body           string `json:"body"`
	Priority       string `json:"priority"`
}

// PaymentCompleted is published on the payments topic when a charge settles.
type PaymentCompleted struct {
	PaymentID   int64 `json:"payment_id"`
	JobID       int64 `json:"job_id"`
	ClientID    int64 `json:"client_id"`
	CleanerID   int64 `json:"cleaner_id"`
	AmountCents int64 `json:"amount_cents"`
}
