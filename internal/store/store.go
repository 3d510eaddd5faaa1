package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role distinguishes the two sides of the marketplace.
type Role string

const (
	RoleClient  Role = "client"
	RoleCleaner Role = "cleaner"
)

// User represents a client or cleaner account. Profile fields are public.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	DisplayName  string
	Bio          string
	Rating       float64
	JobsDone     int64
	CreatedAt    time.Time
}

// Room is the chat room opened between a client and a cleaner when a job is
// accepted. Rooms are never destroyed.
type Room struct {
	ID        int64
	JobID     int64
	CreatedAt time.Time
}

// MessageKind classifies chat messages.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// Message is a persisted chat message. Immutable once created; ordering
// within a room follows CreatedAt (and ID as tiebreaker).
type Message struct {
	ID        int64
	RoomID    int64
	SenderID  int64
	Body      string
	Kind      MessageKind
	CreatedAt time.Time
}

// NotificationStatus is the read state of a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityNormal   NotificationPriority = "normal"
	PriorityCritical NotificationPriority = "critical"
)

// Notification is a persisted notification for one recipient.
type Notification struct {
	ID          int64
	RecipientID int64
	Template    string
	Body        string
	Priority    NotificationPriority
	Status      NotificationStatus
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records a charge for a job.
type Payment struct {
	ID          int64
	JobID       int64
	ClientID    int64
	CleanerID   int64
	AmountCents int64
	Status      PaymentStatus
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password and role.
	CreateUser(ctx context.Context, username, passwordHash string, role Role) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetProfile retrieves a user constrained to the given role, for the
	// public profile endpoints.
	GetProfile(ctx context.Context, id int64, role Role) (*User, error)
}

// RoomStore handles room and participant persistence.
type RoomStore interface {
	// CreateRoom creates the room for a job and registers its participants.
	// Calling it again for the same job returns the existing room.
	CreateRoom(ctx context.Context, jobID int64, participantIDs ...int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// GetRoomByJobID retrieves the room opened for a job.
	GetRoomByJobID(ctx context.Context, jobID int64) (*Room, error)

	// ListRoomsForUser lists rooms the user participates in.
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)

	// IsParticipant reports whether the user belongs to the room.
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)

	// ListParticipants lists user IDs participating in the room.
	ListParticipants(ctx context.Context, roomID int64) ([]int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a room in ascending order.
	// If beforeID is non-nil, only messages older than that ID are returned.
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)
}

// NotificationStore handles notification persistence.
type NotificationStore interface {
	// CreateNotification persists a notification and fills in its ID.
	CreateNotification(ctx context.Context, n *Notification) error

	// GetNotification retrieves a notification by ID.
	GetNotification(ctx context.Context, id int64) (*Notification, error)

	// ListNotifications lists a recipient's notifications, newest first.
	ListNotifications(ctx context.Context, recipientID int64, limit int) ([]*Notification, error)

	// MarkNotificationRead flips status to read. Only the recipient may do so.
	MarkNotificationRead(ctx context.Context, id, recipientID int64) error

	// MarkNotificationDelivered stamps DeliveredAt. Idempotent.
	MarkNotificationDelivered(ctx context.Context, id int64, at time.Time) error
}

// PaymentStore handles payment persistence.
type PaymentStore interface {
	// CreatePayment persists a payment and fills in its ID.
	CreatePayment(ctx context.Context, p *Payment) error

	// UpdatePaymentStatus transitions a payment's status.
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error

	// ListPaymentsForUser lists payments where the user is client or
	// cleaner, newest first.
	ListPaymentsForUser(ctx context.Context, userID int64) ([]*Payment, error)

	// SumEarnings totals completed payment amounts for a cleaner.
	SumEarnings(ctx context.Context, cleanerID int64) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	NotificationStore
	PaymentStore

	// Close closes the underlying database connection.
	Close() error
}
