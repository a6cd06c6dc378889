package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification kinds enqueued for the chat transport.
const (
	NotificationAlert              = "alert"
	NotificationSubscriptionCharge = "subscription-charged"
	NotificationReminderDue        = "reminder-due"
	NotificationMonthlySummary     = "monthly-summary"
	NotificationBackupReady        = "backup-ready"
)

// Notification is one pending outbox row. DedupKey is a stable identifier
// the transport can use to suppress duplicates, since delivery is
// at-least-once.
type Notification struct {
	ID        int64
	UserID    int64
	Kind      string
	Message   string
	Payload   json.RawMessage
	DedupKey  string
	CreatedAt time.Time
}

const maxOutboxDrain = 100

// Enqueue appends a notification outside of any larger transaction.
func (l *Ledger) Enqueue(ctx context.Context, userID int64, kind, message string, payload any) error {
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		return enqueueTx(ctx, tx, userID, kind, message, payload)
	})
	l.metrics.RecordWrite("notification", err)
	return err
}

// enqueueTx appends a notification inside an ongoing transaction so that a
// write and the notifications it triggers commit or roll back together.
func enqueueTx(ctx context.Context, tx *sql.Tx, userID int64, kind, message string, payload any) error {
	body := []byte("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode notification payload: %w", err)
		}
		body = encoded
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, message, payload, dedup_key) VALUES (?, ?, ?, ?, ?)`,
		userID, kind, message, string(body), uuid.NewString()); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// PendingNotifications returns up to 100 unprocessed rows, oldest first.
func (l *Ledger) PendingNotifications(ctx context.Context) ([]Notification, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, kind, message, payload, dedup_key, created_at FROM notifications
		 WHERE processed = 0 ORDER BY created_at, id LIMIT ?`,
		maxOutboxDrain)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var payload, created string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &payload, &n.DedupKey, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Payload = json.RawMessage(payload)
		if at, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
			n.CreatedAt = at
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkProcessed flags a delivered notification. Delivery is at-least-once:
// a crash between deliver and mark re-delivers on the next drain.
func (l *Ledger) MarkProcessed(ctx context.Context, notificationID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE notifications SET processed = 1 WHERE id = ? AND processed = 0`,
		notificationID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: notification %d", ErrNotFound, notificationID)
	}
	return nil
}

// PendingCount reports the outbox backlog for metrics.
func (l *Ledger) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := l.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE processed = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}
