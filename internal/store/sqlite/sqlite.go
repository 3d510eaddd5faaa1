package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sparkleclean/realtime/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a SQLite store at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a SQLite store and runs a setup function after the
// schema is applied. Useful for tests that seed fixture rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	st, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(st.db); err != nil {
			_ = st.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ store.Store = (*SQLiteStore)(nil)

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password and role.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string, role store.Role) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role, display_name)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, string(role), username)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

const userColumns = `id, username, password_hash, role, display_name, bio, rating, jobs_done, created_at`

func scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.DisplayName,
		&user.Bio,
		&user.Rating,
		&user.JobsDone,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetProfile retrieves a user constrained to the given role.
func (s *SQLiteStore) GetProfile(ctx context.Context, id int64, role store.Role) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND role = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id, string(role)))
}

// ==== RoomStore implementation ====

// CreateRoom creates the room for a job and registers its participants.
// Idempotent per job: a second call returns the existing room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, jobID int64, participantIDs ...int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (job_id) VALUES (?)`, jobID); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	var room store.Room
	err = tx.QueryRowContext(ctx,
		`SELECT id, job_id, created_at FROM rooms WHERE job_id = ?`, jobID).
		Scan(&room.ID, &room.JobID, &room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query room: %w", err)
	}

	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`,
			room.ID, userID); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &room, nil
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &room.JobID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// GetRoomByJobID retrieves the room opened for a job.
func (s *SQLiteStore) GetRoomByJobID(ctx context.Context, jobID int64) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, created_at FROM rooms WHERE job_id = ?`, jobID).
		Scan(&room.ID, &room.JobID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ListRoomsForUser lists rooms the user participates in.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.job_id, r.created_at
		FROM rooms r
		JOIN room_participants rp ON rp.room_id = r.id
		WHERE rp.user_id = ?
		ORDER BY r.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.JobID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// IsParticipant reports whether the user belongs to the room.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_participants WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	return true, nil
}

// ListParticipants lists user IDs participating in the room.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender_id, body, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.RoomID, msg.SenderID, msg.Body, string(msg.Kind), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages retrieves messages from a room in ascending order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Fetch newest-first then reverse so the page borders on beforeID.
	query := `
		SELECT id, room_id, sender_id, body, kind, created_at
		FROM messages
		WHERE room_id = ?
	`
	args := []any{roomID}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.Kind, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ==== NotificationStore implementation ====

// CreateNotification persists a notification and fills in its ID.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *store.Notification) error {
	if n.Priority == "" {
		n.Priority = store.PriorityNormal
	}
	if n.Status == "" {
		n.Status = store.NotificationUnread
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (recipient_id, template, body, priority, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.RecipientID, n.Template, n.Body, string(n.Priority), string(n.Status), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// GetNotification retrieves a notification by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, id int64) (*store.Notification, error) {
	var n store.Notification
	var delivered sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, recipient_id, template, body, priority, status, created_at, delivered_at
		 FROM notifications WHERE id = ?`, id).
		Scan(&n.ID, &n.RecipientID, &n.Template, &n.Body, &n.Priority, &n.Status, &n.CreatedAt, &delivered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query notification: %w", err)
	}
	if delivered.Valid {
		n.DeliveredAt = &delivered.Time
	}
	return &n, nil
}

// ListNotifications lists a recipient's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipientID int64, limit int) ([]*store.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient_id, template, body, priority, status, created_at, delivered_at
		 FROM notifications WHERE recipient_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*store.Notification
	for rows.Next() {
		var n store.Notification
		var delivered sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Template, &n.Body, &n.Priority, &n.Status, &n.CreatedAt, &delivered); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if delivered.Valid {
			n.DeliveredAt = &delivered.Time
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flips status to read for the given recipient.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, recipientID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'read' WHERE id = ? AND recipient_id = ?`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification: %w", store.ErrNotFound)
	}
	return nil
}

// MarkNotificationDelivered stamps DeliveredAt once. Later calls keep the
// first timestamp, which makes redelivery by the at-least-once queue safe.
func (s *SQLiteStore) MarkNotificationDelivered(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_at = ? WHERE id = ? AND delivered_at IS NULL`,
		at, id)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// ==== PaymentStore implementation ====

// CreatePayment persists a payment and fills in its ID.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *store.Payment) error {
	if p.Status == "" {
		p.Status = store.PaymentPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (job_id, client_id, cleaner_id, amount_cents, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.JobID, p.ClientID, p.CleanerID, p.AmountCents, string(p.Status), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// UpdatePaymentStatus transitions a payment's status.
func (s *SQLiteStore) UpdatePaymentStatus(ctx context.Context, id int64, status store.PaymentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("payment: %w", store.ErrNotFound)
	}
	return nil
}

// ListPaymentsForUser lists payments involving the user, newest first.
func (s *SQLiteStore) ListPaymentsForUser(ctx context.Context, userID int64) ([]*store.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, client_id, cleaner_id, amount_cents, status, created_at
		 FROM payments WHERE client_id = ? OR cleaner_id = ?
		 ORDER BY created_at DESC, id DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []*store.Payment
	for rows.Next() {
		var p store.Payment
		if err := rows.Scan(&p.ID, &p.JobID, &p.ClientID, &p.CleanerID, &p.AmountCents, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// SumEarnings totals completed payment amounts for a cleaner.
func (s *SQLiteStore) SumEarnings(ctx context.Context, cleanerID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		 WHERE cleaner_id = ? AND status = 'completed'`, cleanerID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	return total, nil
}
