package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (t *pgTx) InsertNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, message, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()))
		RETURNING id, created_at`

	at := &n.CreatedAt
	if n.CreatedAt.IsZero() {
		at = nil
	}
	err := t.q.QueryRow(ctx, query, n.UserID, n.Message, n.Payload, n.IsRead, at).Scan(&n.ID, &n.CreatedAt)
	return mapErr("InsertNotification", err)
}

func (t *pgTx) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, user_id, message, payload, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr("ListNotifications", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Notification, error) {
		var n models.Notification
		err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Payload, &n.IsRead, &n.CreatedAt)
		return n, err
	})
	return out, mapErr("ListNotifications", err)
}

func (t *pgTx) MarkNotificationRead(ctx context.Context, userID, id int) error {
	tag, err := t.q.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapErr("MarkNotificationRead", err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr("MarkNotificationRead", pgx.ErrNoRows)
	}
	return nil
}
