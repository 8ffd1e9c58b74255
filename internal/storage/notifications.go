package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kopilka/internal/core"
)

// UnreadNotificationExists reports whether an unread notification with the
// given dedup key is already flagged for the owner.
func (q *Queries) UnreadNotificationExists(ctx context.Context, ownerID int64, dedupKey string) (bool, error) {
	var one int64
	err := q.db.QueryRowContext(ctx, `
		SELECT 1 FROM notifications
		WHERE owner_id = ? AND dedup_key = ? AND is_read = 0 LIMIT 1`,
		ownerID, dedupKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check unread notification: %w", err)
	}
	return true, nil
}

func (q *Queries) InsertNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	params, err := json.Marshal(n.Params)
	if err != nil {
		return core.Notification{}, fmt.Errorf("marshal notification params: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO notifications (owner_id, kind, dedup_key, message_key, params, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		n.OwnerID, n.Kind, n.DedupKey, n.MessageKey, string(params), formatTime(n.CreatedAt))
	if err != nil {
		return core.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return core.Notification{}, fmt.Errorf("notification id: %w", err)
	}
	return n, nil
}

func (q *Queries) ListNotifications(ctx context.Context, ownerID int64, unreadOnly bool, limit int) ([]core.Notification, error) {
	query := `
		SELECT id, owner_id, kind, dedup_key, message_key, params, created_at, is_read
		FROM notifications WHERE owner_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := q.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var params, createdAt string
		var isRead int64
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Kind, &n.DedupKey, &n.MessageKey, &params, &createdAt, &isRead); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &n.Params); err != nil {
			return nil, fmt.Errorf("unmarshal notification params: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		n.IsRead = isRead != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *Queries) CountUnreadNotifications(ctx context.Context, ownerID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE owner_id = ? AND is_read = 0`,
		ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (q *Queries) MarkNotificationRead(ctx context.Context, ownerID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, ownerID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE owner_id = ? AND is_read = 0`,
		ownerID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
