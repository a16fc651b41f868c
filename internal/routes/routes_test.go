package routes_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/fixtures"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/handlers"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/memstore"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/routes"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	router http.Handler
	owner  *fixtures.Owner
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memstore.New()
	svc := ledger.NewService(store)
	owner, err := fixtures.NewOwner(context.Background(), svc, 1, "USD", "EUR")
	if err != nil {
		t.Fatalf("NewOwner: %v", err)
	}
	log := zerolog.New(io.Discard)
	return &api{
		router: routes.SetupRouter(handlers.New(svc, log), []string{"http://localhost:3000"}, log),
		owner:  owner,
	}
}

func (a *api) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestScheduledTransactionLifecycle(t *testing.T) {
	a := newAPI(t)
	body := fmt.Sprintf(`{
		"legs": {"type": "expense", "source_account_id": %d},
		"amount": "12.50",
		"currency": "USD",
		"category_id": %d,
		"description": "rent",
		"frequency": "monthly",
		"start_date": "2024-01-31T00:00:00Z",
		"start_time": "09:00:00"
	}`, a.owner.Account("USD").ID, a.owner.Expense.ID)

	rec := a.do(t, http.MethodPost, "/api/scheduled-transactions?user_id=1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body)
	}
	var rule models.ScheduledTransaction
	decode(t, rec, &rule)
	if !rule.IsActive || rule.Timezone != models.DefaultTimezone {
		t.Errorf("created rule: active=%v timezone=%q", rule.IsActive, rule.Timezone)
	}

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/scheduled-transactions/%d?user_id=1&upcoming=3", rule.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d, body %s", rec.Code, rec.Body)
	}
	var got struct {
		Rule     models.ScheduledTransaction `json:"scheduled_transaction"`
		Upcoming []string                    `json:"upcoming"`
	}
	decode(t, rec, &got)
	want := []string{"2024-01-31T09:00:00Z", "2024-02-29T09:00:00Z", "2024-03-31T09:00:00Z"}
	if fmt.Sprint(got.Upcoming) != fmt.Sprint(want) {
		t.Errorf("upcoming = %v, want %v", got.Upcoming, want)
	}

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/scheduled-transactions/%d/deactivate?user_id=1", rule.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status %d, body %s", rec.Code, rec.Body)
	}

	rec = a.do(t, http.MethodGet, "/api/scheduled-transactions?user_id=1", "")
	var rules []models.ScheduledTransaction
	decode(t, rec, &rules)
	if len(rules) != 1 || rules[0].IsActive {
		t.Errorf("rules after deactivation: %+v", rules)
	}

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/scheduled-transactions/%d?user_id=2", rule.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign owner: status %d, want 404", rec.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	a := newAPI(t)
	usd, eur := a.owner.Account("USD").ID, a.owner.Account("EUR").ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing owner", http.MethodGet, "/api/accounts", "", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/scheduled-transactions/abc?user_id=1", "", http.StatusBadRequest},
		{"unknown rule", http.MethodGet, "/api/scheduled-transactions/999?user_id=1", "", http.StatusNotFound},
		{
			"expense with destination", http.MethodPost, "/api/transactions?user_id=1",
			fmt.Sprintf(`{"legs":{"type":"expense","source_account_id":%d,"destination_account_id":%d},"amount":"1","currency":"USD"}`, usd, eur),
			http.StatusBadRequest,
		},
		{
			"foreign account", http.MethodPost, "/api/transactions?user_id=2",
			fmt.Sprintf(`{"legs":{"type":"expense","source_account_id":%d},"amount":"1","currency":"USD"}`, usd),
			http.StatusBadRequest,
		},
		{
			"currency mismatch", http.MethodPost, "/api/transactions?user_id=1",
			fmt.Sprintf(`{"legs":{"type":"expense","source_account_id":%d},"amount":"1","currency":"EUR"}`, usd),
			http.StatusBadRequest,
		},
		{
			"transfer without rate", http.MethodPost, "/api/transactions?user_id=1",
			fmt.Sprintf(`{"legs":{"type":"transfer","source_account_id":%d,"destination_account_id":%d},"amount":"1","currency":"USD"}`, usd, eur),
			http.StatusUnprocessableEntity,
		},
		{
			"duplicate category", http.MethodPost, "/api/categories?user_id=1",
			fmt.Sprintf(`{"name":%q,"type":"expense"}`, a.owner.Expense.Name),
			http.StatusConflict,
		},
		{"base currency rate", http.MethodPut, "/api/exchange-rates/USD?user_id=1", `{"rate":"1"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/accounts?user_id=1", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestTransferWithRate(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodPut, "/api/exchange-rates/eur?user_id=1", `{"rate":"0.92"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set rate: status %d, body %s", rec.Code, rec.Body)
	}

	body := fmt.Sprintf(`{"legs":{"type":"transfer","source_account_id":%d,"destination_account_id":%d},"amount":"100","currency":"USD"}`,
		a.owner.Account("USD").ID, a.owner.Account("EUR").ID)
	rec = a.do(t, http.MethodPost, "/api/transactions?user_id=1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("transfer: status %d, body %s", rec.Code, rec.Body)
	}
	var tr models.Transaction
	decode(t, rec, &tr)
	if tr.DestinationAmount.String() != "92" {
		t.Errorf("destination amount = %s, want 92", tr.DestinationAmount)
	}

	rec = a.do(t, http.MethodGet, "/api/accounts?user_id=1", "")
	var accounts []models.Account
	decode(t, rec, &accounts)
	balances := map[string]string{}
	for _, acc := range accounts {
		balances[acc.Currency] = acc.Balance.String()
	}
	if balances["USD"] != "900" || balances["EUR"] != "1092" {
		t.Errorf("balances = %v", balances)
	}
}

func TestCORSPreflight(t *testing.T) {
	a := newAPI(t)
	for origin, want := range map[string]string{
		"http://localhost:3000": "http://localhost:3000",
		"http://evil.example":   "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/accounts", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", origin, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("%s: allow origin %q, want %q", origin, got, want)
		}
	}
}
