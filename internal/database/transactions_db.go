package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

const transactionColumns = `id, user_id, type, source_account_id, destination_account_id, amount, currency,
	destination_amount, category_id, description, transaction_date, scheduled_transaction_id, occurrence_at, created_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		t           models.Transaction
		kind        models.TransactionType
		source, dst *int
	)
	err := row.Scan(&t.ID, &t.UserID, &kind, &source, &dst, &t.Amount, &t.Currency,
		&t.DestinationAmount, &t.CategoryID, &t.Description, &t.TransactionDate,
		&t.ScheduledTransactionID, &t.OccurrenceAt, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	if t.Legs, err = models.NewDirection(kind, source, dst); err != nil {
		return t, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	return t, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, type, source_account_id, destination_account_id, amount, currency,
			destination_amount, category_id, description, transaction_date, scheduled_transaction_id, occurrence_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := t.q.QueryRow(ctx, query,
		tr.UserID,
		tr.Type(),
		tr.Legs.SourceID(),
		tr.Legs.DestinationID(),
		tr.Amount,
		tr.Currency,
		tr.DestinationAmount,
		tr.CategoryID,
		tr.Description,
		tr.TransactionDate,
		tr.ScheduledTransactionID,
		tr.OccurrenceAt,
	).Scan(&tr.ID, &tr.CreatedAt)
	return mapErr("InsertTransaction", err)
}

func (t *pgTx) ListTransactions(ctx context.Context, userID int) ([]models.Transaction, error) {
	return t.listTransactions(ctx, "ListTransactions",
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY transaction_date DESC, id DESC`, userID)
}

func (t *pgTx) ListRuleTransactions(ctx context.Context, ruleID int) ([]models.Transaction, error) {
	return t.listTransactions(ctx, "ListRuleTransactions",
		`SELECT `+transactionColumns+` FROM transactions WHERE scheduled_transaction_id = $1 ORDER BY occurrence_at`, ruleID)
}

func (t *pgTx) listTransactions(ctx context.Context, op, query string, arg int) ([]models.Transaction, error) {
	rows, err := t.q.Query(ctx, query, arg)
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		return scanTransaction(row)
	})
	return out, mapErr(op, err)
}
