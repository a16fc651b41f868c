package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/scheduler"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

var _ scheduler.Repository = (*Store)(nil)

const ruleColumns = `id, user_id, type, source_account_id, destination_account_id, amount, currency, description,
	category_id, frequency, start_date, end_date, start_time, end_time, timezone, next_run_at, is_active,
	last_run_at, last_error, last_error_at, consecutive_failures, missing_rate_failures, claim_token, claimed_at, version,
	created_at, updated_at`

func toPgTime(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPgTime(t pgtype.Time) models.TimeOfDay {
	return models.TimeOfDayFromDuration(time.Duration(t.Microseconds) * time.Microsecond)
}

func scanRule(row pgx.Row) (models.ScheduledTransaction, error) {
	var (
		r                  models.ScheduledTransaction
		kind               models.TransactionType
		source, dst        *int
		startTime, endTime pgtype.Time
	)
	err := row.Scan(&r.ID, &r.UserID, &kind, &source, &dst, &r.Amount, &r.Currency, &r.Description,
		&r.CategoryID, &r.Frequency, &r.StartDate, &r.EndDate, &startTime, &endTime, &r.Timezone,
		&r.NextRunAt, &r.IsActive, &r.LastRunAt, &r.LastError, &r.LastErrorAt, &r.ConsecutiveFailures, &r.MissingRateFailures,
		&r.ClaimToken, &r.ClaimedAt, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if r.Legs, err = models.NewDirection(kind, source, dst); err != nil {
		return r, fmt.Errorf("scheduled transaction %d: %w", r.ID, err)
	}
	r.StartTime = fromPgTime(startTime)
	if endTime.Valid {
		end := fromPgTime(endTime)
		r.EndTime = &end
	}
	return r, nil
}

func (t *pgTx) InsertScheduledTransaction(ctx context.Context, r *models.ScheduledTransaction) error {
	var endTime pgtype.Time
	if r.EndTime != nil {
		endTime = toPgTime(*r.EndTime)
	}
	query := `
		INSERT INTO scheduled_transactions (user_id, type, source_account_id, destination_account_id, amount,
			currency, description, category_id, frequency, start_date, end_date, start_time, end_time, timezone,
			next_run_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, version, created_at, updated_at`

	err := t.q.QueryRow(ctx, query,
		r.UserID,
		r.Legs.Type(),
		r.Legs.SourceID(),
		r.Legs.DestinationID(),
		r.Amount,
		r.Currency,
		r.Description,
		r.CategoryID,
		r.Frequency,
		r.StartDate,
		r.EndDate,
		toPgTime(r.StartTime),
		endTime,
		r.Timezone,
		r.NextRunAt,
		r.IsActive,
	).Scan(&r.ID, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	return mapErr("InsertScheduledTransaction", err)
}

func (t *pgTx) GetScheduledTransaction(ctx context.Context, id int) (*models.ScheduledTransaction, error) {
	r, err := scanRule(t.q.QueryRow(ctx, `SELECT `+ruleColumns+` FROM scheduled_transactions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("GetScheduledTransaction", err)
	}
	return &r, nil
}

func (t *pgTx) ListScheduledTransactions(ctx context.Context, userID int) ([]models.ScheduledTransaction, error) {
	rows, err := t.q.Query(ctx, `SELECT `+ruleColumns+` FROM scheduled_transactions
		WHERE user_id = $1 ORDER BY is_active DESC, next_run_at, id`, userID)
	if err != nil {
		return nil, mapErr("ListScheduledTransactions", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ScheduledTransaction, error) {
		return scanRule(row)
	})
	return out, mapErr("ListScheduledTransactions", err)
}

func (t *pgTx) AdvanceScheduledTransaction(ctx context.Context, id int, token uuid.UUID, next time.Time, active bool, now time.Time) error {
	query := `
		UPDATE scheduled_transactions
		SET next_run_at = $3,
			is_active = is_active AND $4,
			last_run_at = $5,
			claim_token = NULL,
			claimed_at = NULL,
			consecutive_failures = 0,
			missing_rate_failures = 0,
			last_error = '',
			last_error_at = NULL,
			updated_at = $5,
			version = version + 1
		WHERE id = $1 AND claim_token = $2 AND is_active`

	tag, err := t.q.Exec(ctx, query, id, token, next, active, now)
	if err != nil {
		return mapErr("AdvanceScheduledTransaction", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("AdvanceScheduledTransaction: rule %d: %w", id, models.ErrClaimLost)
	}
	return nil
}

func (t *pgTx) DeactivateScheduledTransaction(ctx context.Context, id int, now time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE scheduled_transactions
		SET is_active = FALSE, claim_token = NULL, claimed_at = NULL, updated_at = $2, version = version + 1
		WHERE id = $1`, id, now)
	if err != nil {
		return mapErr("DeactivateScheduledTransaction", err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr("DeactivateScheduledTransaction", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) FetchDueRules(ctx context.Context, asOf time.Time, limit int) ([]models.ScheduledTransaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM scheduled_transactions
		WHERE is_active AND claim_token IS NULL AND next_run_at <= $1
		ORDER BY next_run_at, id
		LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, mapErr("FetchDueRules", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ScheduledTransaction, error) {
		return scanRule(row)
	})
	return out, mapErr("FetchDueRules", err)
}

// ClaimScheduledTransaction is a single conditional update, so concurrent
// callers are serialized by the row lock and only the first one matches.
func (s *Store) ClaimScheduledTransaction(ctx context.Context, id int, token uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_transactions
		SET claim_token = $2, claimed_at = $3, version = version + 1
		WHERE id = $1 AND is_active AND claim_token IS NULL AND next_run_at <= $3`, id, token, now)
	if err != nil {
		return false, mapErr("ClaimScheduledTransaction", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) FailScheduledTransaction(ctx context.Context, id int, token uuid.UUID, f models.RunFailure, now time.Time) (models.FailureStreak, error) {
	var streak models.FailureStreak
	err := s.pool.QueryRow(ctx, `
		UPDATE scheduled_transactions
		SET claim_token = NULL,
			claimed_at = NULL,
			last_error = $3,
			last_error_at = $6,
			consecutive_failures = consecutive_failures + 1,
			missing_rate_failures = CASE WHEN $5 THEN missing_rate_failures + 1 ELSE 0 END,
			is_active = is_active AND NOT $4,
			updated_at = $6,
			version = version + 1
		WHERE id = $1 AND claim_token = $2
		RETURNING consecutive_failures, missing_rate_failures`,
		id, token, f.Reason, f.Deactivate, f.MissingRate, now).Scan(&streak.Consecutive, &streak.MissingRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return streak, fmt.Errorf("FailScheduledTransaction: rule %d: %w", id, models.ErrClaimLost)
	}
	if err != nil {
		return streak, mapErr("FailScheduledTransaction", err)
	}
	return streak, nil
}

func (s *Store) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_transactions s
		SET claim_token = NULL, claimed_at = NULL, version = version + 1
		WHERE s.claim_token IS NOT NULL
			AND s.claimed_at < $1
			AND NOT EXISTS (
				SELECT 1 FROM transactions t
				WHERE t.scheduled_transaction_id = s.id AND t.occurrence_at = s.next_run_at
			)`, claimedBefore)
	if err != nil {
		return 0, mapErr("ReleaseStaleClaims", err)
	}
	return tag.RowsAffected(), nil
}
