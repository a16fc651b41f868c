package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

const categoryColumns = `id, user_id, name, type, created_at, deleted_at`

func scanCategory(row pgx.Row) (models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt, &c.DeletedAt)
	return c, err
}

func (t *pgTx) InsertCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (user_id, name, type) VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := t.q.QueryRow(ctx, query, c.UserID, c.Name, c.Type).Scan(&c.ID, &c.CreatedAt)
	return mapErr("InsertCategory", err)
}

func (t *pgTx) GetCategory(ctx context.Context, id int) (*models.Category, error) {
	c, err := scanCategory(t.q.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("GetCategory", err)
	}
	return &c, nil
}

func (t *pgTx) ListCategories(ctx context.Context, userID int) ([]models.Category, error) {
	rows, err := t.q.Query(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE user_id = $1 AND deleted_at IS NULL ORDER BY type, name`, userID)
	if err != nil {
		return nil, mapErr("ListCategories", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		return scanCategory(row)
	})
	return out, mapErr("ListCategories", err)
}

func (t *pgTx) SoftDeleteCategory(ctx context.Context, id int, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE categories SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return mapErr("SoftDeleteCategory", err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr("SoftDeleteCategory", pgx.ErrNoRows)
	}
	return nil
}
