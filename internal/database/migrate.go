package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

//go:embed schema.sql
var schema string

// SchemaVersion is recorded in schema_migrations once the schema is applied.
const SchemaVersion = "0002_missing_rate_streak"

// Migrate creates missing tables and indexes and seeds the supported
// currencies. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) (applied bool, err error) {
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range models.DefaultCurrencies {
			batch.Queue(`INSERT INTO supported_currencies (code, name, symbol) VALUES ($1, $2, $3)
				ON CONFLICT (code) DO NOTHING`, c.Code, c.Name, c.Symbol)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed currencies: %w", err)
		}

		tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, SchemaVersion)
		if err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		applied = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("Migrate: %w", err)
	}
	return applied, nil
}
