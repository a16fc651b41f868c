package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (t *pgTx) GetUserSettings(ctx context.Context, userID int) (*models.UserSettings, error) {
	settings := &models.UserSettings{}
	err := t.q.QueryRow(ctx, `SELECT user_id, currency, timezone FROM user_settings WHERE user_id = $1`, userID).
		Scan(&settings.UserID, &settings.Currency, &settings.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return nil, mapErr("GetUserSettings", err)
	}
	return settings, nil
}

func (t *pgTx) UpsertUserSettings(ctx context.Context, s *models.UserSettings) error {
	query := `
		INSERT INTO user_settings (user_id, currency, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET currency = EXCLUDED.currency, timezone = EXCLUDED.timezone`

	_, err := t.q.Exec(ctx, query, s.UserID, s.Currency, s.Timezone)
	return mapErr("UpsertUserSettings", err)
}
