package database_test

import (
	"context"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/database"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/fixtures"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// openStore connects to DATABASE_URL and applies the schema. Tests are skipped
// when no database is configured.
func openStore(t *testing.T) *database.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL не задан, пропускаем тесты с PostgreSQL")
	}

	ctx := context.Background()
	store, err := database.ConnectDB(ctx, url)
	if err != nil {
		t.Fatalf("ошибка подключения к БД: %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("ошибка миграции: %v", err)
	}
	return store
}

// newOwner creates a fresh owner so tests never see each other's rows.
func newOwner(t *testing.T, store *database.Store, currencies ...string) (*ledger.Service, *fixtures.Owner) {
	t.Helper()
	svc := ledger.NewService(store)
	userID := 100000 + rand.Intn(1<<30)
	owner, err := fixtures.NewOwner(context.Background(), svc, userID, currencies...)
	if err != nil {
		t.Fatalf("ошибка создания владельца: %v", err)
	}
	return svc, owner
}

func must(d models.Direction, err error) models.Direction {
	if err != nil {
		panic(err)
	}
	return d
}

// past keeps created rules due for any claim made at time.Now.
var past = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func TestMigrateIsIdempotent(t *testing.T) {
	store := openStore(t)
	applied, err := store.Migrate(context.Background())
	if err != nil {
		t.Fatalf("ошибка повторной миграции: %v", err)
	}
	if applied {
		t.Errorf("повторная миграция не должна записывать версию %s", database.SchemaVersion)
	}
}

func TestListCurrenciesSeeded(t *testing.T) {
	store := openStore(t)
	svc := ledger.NewService(store)
	list, err := svc.ListCurrencies(context.Background())
	if err != nil {
		t.Fatalf("ошибка получения валют: %v", err)
	}
	if len(list) < len(models.DefaultCurrencies) {
		t.Errorf("валют %d, ожидали не меньше %d", len(list), len(models.DefaultCurrencies))
	}
}
