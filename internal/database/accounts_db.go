package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

const accountColumns = `id, user_id, name, account_type_id, category, currency, balance, created_at, deleted_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.AccountTypeID, &a.Category, &a.Currency,
		&a.Balance, &a.CreatedAt, &a.DeletedAt)
	return a, err
}

func (t *pgTx) InsertAccountType(ctx context.Context, at *models.AccountType) error {
	err := t.q.QueryRow(ctx, `INSERT INTO account_types (user_id, name) VALUES ($1, $2) RETURNING id`,
		at.UserID, at.Name).Scan(&at.ID)
	return mapErr("InsertAccountType", err)
}

func (t *pgTx) GetAccountType(ctx context.Context, id int) (*models.AccountType, error) {
	at := &models.AccountType{}
	err := t.q.QueryRow(ctx, `SELECT id, user_id, name FROM account_types WHERE id = $1`, id).
		Scan(&at.ID, &at.UserID, &at.Name)
	if err != nil {
		return nil, mapErr("GetAccountType", err)
	}
	return at, nil
}

func (t *pgTx) ListAccountTypes(ctx context.Context, userID int) ([]models.AccountType, error) {
	rows, err := t.q.Query(ctx, `SELECT id, user_id, name FROM account_types WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr("ListAccountTypes", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AccountType, error) {
		var at models.AccountType
		err := row.Scan(&at.ID, &at.UserID, &at.Name)
		return at, err
	})
	return out, mapErr("ListAccountTypes", err)
}

func (t *pgTx) InsertAccount(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, name, account_type_id, category, currency, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := t.q.QueryRow(ctx, query, a.UserID, a.Name, a.AccountTypeID, a.Category, a.Currency, a.Balance).
		Scan(&a.ID, &a.CreatedAt)
	return mapErr("InsertAccount", err)
}

func (t *pgTx) GetAccount(ctx context.Context, id int) (*models.Account, error) {
	a, err := scanAccount(t.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("GetAccount", err)
	}
	return &a, nil
}

func (t *pgTx) ListAccounts(ctx context.Context, userID int) ([]models.Account, error) {
	rows, err := t.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE user_id = $1 AND deleted_at IS NULL ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr("ListAccounts", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Account, error) {
		return scanAccount(row)
	})
	return out, mapErr("ListAccounts", err)
}

func (t *pgTx) SoftDeleteAccount(ctx context.Context, id int, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE accounts SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return mapErr("SoftDeleteAccount", err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr("SoftDeleteAccount", pgx.ErrNoRows)
	}
	return nil
}

// AdjustBalance adds delta to a live account. The row stays locked until the
// surrounding transaction ends.
func (t *pgTx) AdjustBalance(ctx context.Context, accountID int, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := t.q.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING balance`, accountID, delta).Scan(&balance)
	return mapErr("AdjustBalance", err)
}
