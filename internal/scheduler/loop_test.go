package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/fixtures"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/memstore"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/notify"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/recurrence"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Kind
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

// panicOn wraps a materializer and panics for one rule.
type panicOn struct {
	next   Materializer
	ruleID int
}

func (p panicOn) Materialize(ctx context.Context, tx ledger.Tx, ruleID int, token uuid.UUID, now time.Time) (*ledger.Outcome, error) {
	if ruleID == p.ruleID {
		panic("corrupt rule")
	}
	return p.next.Materialize(ctx, tx, ruleID, token, now)
}

// failFirst wraps a materializer and fails its first n runs with a retryable error.
type failFirst struct {
	next Materializer
	mu   sync.Mutex
	n    int
}

func (f *failFirst) Materialize(ctx context.Context, tx ledger.Tx, ruleID int, token uuid.UUID, now time.Time) (*ledger.Outcome, error) {
	f.mu.Lock()
	fail := f.n > 0
	f.n--
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.next.Materialize(ctx, tx, ruleID, token, now)
}

// ctxLogNotifier writes each event through the logger found in its context.
type ctxLogNotifier struct{}

func (ctxLogNotifier) Notify(ctx context.Context, e notify.Event) error {
	log := logger.FromContext(ctx, zerolog.Nop())
	log.Info().Str("kind", string(e.Kind)).Msg("notified")
	return nil
}

// slowClaims never grants a claim before the caller gives up.
type slowClaims struct {
	*memstore.Store
}

func (s slowClaims) ClaimScheduledTransaction(ctx context.Context, _ int, _ uuid.UUID, _ time.Time) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

type harness struct {
	store    *memstore.Store
	svc      *ledger.Service
	owner    *fixtures.Owner
	notifier *recordingNotifier
	loop     *Loop
	now      time.Time
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	svc := ledger.NewService(store)
	owner, err := fixtures.NewOwner(ctx, svc, 1, "USD", "EUR", "PLN")
	if err != nil {
		t.Fatalf("NewOwner: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ClaimTimeout = 100 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		store:    store,
		svc:      svc,
		owner:    owner,
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	h.loop, err = New(store, h.notifier, cfg, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.loop.Now = func() time.Time { return h.now }
	return h
}

func must(d models.Direction, err error) models.Direction {
	if err != nil {
		panic(err)
	}
	return d
}

func (h *harness) rule(t *testing.T, legs models.Direction, currency string, freq models.Frequency, start time.Time) *models.ScheduledTransaction {
	t.Helper()
	r := h.owner.Rule(legs, "10", currency, freq, start)
	if err := h.svc.CreateScheduledTransaction(context.Background(), r); err != nil {
		t.Fatalf("CreateScheduledTransaction: %v", err)
	}
	return r
}

func (h *harness) reload(t *testing.T, id int) *models.ScheduledTransaction {
	t.Helper()
	r, _, err := h.svc.GetScheduledTransaction(context.Background(), h.owner.UserID, id, 0)
	if err != nil {
		t.Fatalf("GetScheduledTransaction: %v", err)
	}
	return r
}

func (h *harness) produced(t *testing.T, id int) []models.Transaction {
	t.Helper()
	txs, err := h.svc.ListRuleTransactions(context.Background(), h.owner.UserID, id)
	if err != nil {
		t.Fatalf("ListRuleTransactions: %v", err)
	}
	return txs
}

func (h *harness) expense(t *testing.T, start time.Time) *models.ScheduledTransaction {
	return h.rule(t, must(models.Expense(h.owner.Account("USD").ID)), "USD", models.FrequencyDaily, start)
}

func TestTickMaterializesDueRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	due := h.expense(t, h.now.Add(-time.Hour))
	future := h.expense(t, h.now.Add(time.Hour))

	rep := h.loop.Tick(ctx)
	if rep.Due != 1 || rep.Materialized != 1 {
		t.Fatalf("first tick = %+v, want 1 due and materialized", rep)
	}
	if len(h.produced(t, due.ID)) != 1 || len(h.produced(t, future.ID)) != 0 {
		t.Error("wrong rules materialized")
	}

	if rep := h.loop.Tick(ctx); rep.Due != 0 {
		t.Errorf("second tick = %+v, want nothing due", rep)
	}
	if next := h.reload(t, due.ID).NextRunAt; !next.Equal(h.now.Add(23 * time.Hour)) {
		t.Errorf("NextRunAt = %v", next)
	}
}

func TestConcurrentTicksFireOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.ClaimTimeout = time.Second })
	var rules []*models.ScheduledTransaction
	for i := 0; i < 8; i++ {
		rules = append(rules, h.expense(t, h.now.Add(-time.Duration(i+1)*time.Minute)))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep := h.loop.Tick(ctx)
			mu.Lock()
			total += rep.Materialized
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != len(rules) {
		t.Errorf("materialized %d occurrences across ticks, want %d", total, len(rules))
	}
	for _, r := range rules {
		if n := len(h.produced(t, r.ID)); n != 1 {
			t.Errorf("rule %d produced %d transactions, want 1", r.ID, n)
		}
	}
	b, _ := fixtures.Balance(ctx, h.store, h.owner.Account("USD").ID)
	if !b.Equal(decimal.NewFromInt(920)) {
		t.Errorf("USD balance = %s, want 920", b)
	}
}

func TestCatchUpOneOccurrencePerTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.AddDate(0, 0, -3).Add(-time.Hour))

	for tick := 1; tick <= 4; tick++ {
		if rep := h.loop.Tick(ctx); rep.Materialized != 1 {
			t.Fatalf("tick %d = %+v, want one materialization", tick, rep)
		}
		if n := len(h.produced(t, r.ID)); n != tick {
			t.Fatalf("after tick %d: %d transactions", tick, n)
		}
	}
	if rep := h.loop.Tick(ctx); rep.Due != 0 {
		t.Errorf("caught up rule still due: %+v", rep)
	}
}

func TestMissingRateKeepsCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.MissingRateNotifyAfter = 2 })
	start := h.now.Add(-time.Hour)
	r := h.rule(t, must(models.Transfer(h.owner.Account("USD").ID, h.owner.Account("PLN").ID)), "USD", models.FrequencyDaily, start)

	for tick := 1; tick <= 2; tick++ {
		if rep := h.loop.Tick(ctx); rep.Failed != 1 {
			t.Fatalf("tick %d = %+v, want one failure", tick, rep)
		}
		stored := h.reload(t, r.ID)
		if !stored.IsActive || !stored.NextRunAt.Equal(start) || stored.ClaimToken != nil {
			t.Fatalf("rule after tick %d: active %v next %v claim %v", tick, stored.IsActive, stored.NextRunAt, stored.ClaimToken)
		}
		if stored.ConsecutiveFailures != tick || stored.MissingRateFailures != tick {
			t.Errorf("failures = %d/%d, want %d", stored.ConsecutiveFailures, stored.MissingRateFailures, tick)
		}
	}
	if kinds := h.notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindExchangeRateMissing {
		t.Errorf("notifications = %v, want one exchange_rate_missing", kinds)
	}

	err := h.svc.SetExchangeRate(ctx, &models.ExchangeRate{UserID: 1, Currency: "PLN", Rate: decimal.RequireFromString("4")})
	if err != nil {
		t.Fatalf("SetExchangeRate: %v", err)
	}
	if rep := h.loop.Tick(ctx); rep.Materialized != 1 {
		t.Fatalf("tick after rate = %+v", rep)
	}
	txs := h.produced(t, r.ID)
	if len(txs) != 1 || !txs[0].DestinationAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("produced = %+v", txs)
	}
	if stored := h.reload(t, r.ID); stored.ConsecutiveFailures != 0 || stored.MissingRateFailures != 0 {
		t.Errorf("failure streaks not reset after success: %d/%d", stored.ConsecutiveFailures, stored.MissingRateFailures)
	}
}

func TestMissingRateNoticeCountsOnlyMissingRateRuns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.MissingRateNotifyAfter = 2 })
	r := h.rule(t, must(models.Transfer(h.owner.Account("USD").ID, h.owner.Account("PLN").ID)), "USD", models.FrequencyDaily, h.now.Add(-time.Hour))
	h.loop.WithMaterializer(&failFirst{next: ledger.NewMaterializer(recurrence.EndTimeAnnotate), n: 1})

	wants := []struct{ consecutive, missing, notices int }{
		{1, 0, 0}, // unrelated failure
		{2, 1, 0},
		{3, 2, 1},
	}
	for i, want := range wants {
		if rep := h.loop.Tick(ctx); rep.Failed != 1 {
			t.Fatalf("tick %d = %+v, want one failure", i+1, rep)
		}
		stored := h.reload(t, r.ID)
		if stored.ConsecutiveFailures != want.consecutive || stored.MissingRateFailures != want.missing {
			t.Errorf("tick %d: failures = %d/%d, want %d/%d", i+1,
				stored.ConsecutiveFailures, stored.MissingRateFailures, want.consecutive, want.missing)
		}
		if n := len(h.notifier.kinds()); n != want.notices {
			t.Errorf("tick %d: %d notifications, want %d", i+1, n, want.notices)
		}
	}
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if e := h.notifier.events[0]; e.Kind != notify.KindExchangeRateMissing || e.Failures != 2 {
		t.Errorf("notice = %+v, want exchange_rate_missing after 2 runs", e)
	}
}

func TestRuleLoggerTravelsInContext(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.Add(-time.Hour))
	if err := h.svc.DeleteAccount(ctx, 1, h.owner.Account("USD").ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	buf := &bytes.Buffer{}
	loop, err := New(h.store, ctxLogNotifier{}, DefaultConfig(), zerolog.New(buf))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loop.Now = func() time.Time { return h.now }
	if rep := loop.Tick(ctx); rep.Deactivated != 1 {
		t.Fatalf("tick = %+v, want one deactivation", rep)
	}

	var notified string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"message":"notified"`) {
			notified = line
		}
	}
	if !strings.Contains(notified, fmt.Sprintf(`"rule_id":%d`, r.ID)) || !strings.Contains(notified, `"user_id":1`) {
		t.Errorf("notifier log line lacks rule fields: %q", notified)
	}
}

func TestDanglingReferenceDeactivates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.Add(-time.Hour))
	if err := h.svc.DeleteAccount(ctx, 1, h.owner.Account("USD").ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if rep := h.loop.Tick(ctx); rep.Deactivated != 1 {
		t.Fatalf("tick = %+v, want one deactivation", rep)
	}
	stored := h.reload(t, r.ID)
	if stored.IsActive || stored.LastError == "" {
		t.Errorf("rule = active %v last error %q", stored.IsActive, stored.LastError)
	}
	if len(h.produced(t, r.ID)) != 0 {
		t.Error("dangling rule produced a transaction")
	}
	if kinds := h.notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindRuleDeactivated {
		t.Errorf("notifications = %v", kinds)
	}
	if rep := h.loop.Tick(ctx); rep.Due != 0 {
		t.Errorf("deactivated rule still due: %+v", rep)
	}
}

func TestOwnerDeactivationObservedNextTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.Add(-time.Hour))
	if err := h.svc.DeactivateScheduledTransaction(ctx, 1, r.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if rep := h.loop.Tick(ctx); rep.Due != 0 || len(h.produced(t, r.ID)) != 0 {
		t.Errorf("deactivated rule fired: %+v", rep)
	}
}

func TestOnceRuleFiresOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.rule(t, must(models.Income(h.owner.Account("EUR").ID)), "EUR", models.FrequencyOnce, h.now.Add(-time.Minute))

	h.loop.Tick(ctx)
	h.now = h.now.AddDate(0, 1, 0)
	h.loop.Tick(ctx)

	if n := len(h.produced(t, r.ID)); n != 1 {
		t.Errorf("once rule produced %d transactions", n)
	}
	if h.reload(t, r.ID).IsActive {
		t.Error("once rule still active")
	}
}

func TestPanicIsolation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	bad := h.expense(t, h.now.Add(-2*time.Hour))
	good := h.expense(t, h.now.Add(-time.Hour))
	h.loop.WithMaterializer(panicOn{next: ledger.NewMaterializer(recurrence.EndTimeAnnotate), ruleID: bad.ID})

	rep := h.loop.Tick(ctx)
	if rep.Materialized != 1 || rep.Failed != 1 {
		t.Fatalf("tick = %+v, want one success and one failure", rep)
	}
	if len(h.produced(t, good.ID)) != 1 {
		t.Error("healthy rule not materialized")
	}
	stored := h.reload(t, bad.ID)
	if !stored.IsActive || stored.ClaimToken != nil || stored.ConsecutiveFailures != 1 {
		t.Errorf("panicking rule = active %v claim %v failures %d", stored.IsActive, stored.ClaimToken, stored.ConsecutiveFailures)
	}
	b, _ := fixtures.Balance(ctx, h.store, h.owner.Account("USD").ID)
	if !b.Equal(decimal.NewFromInt(990)) {
		t.Errorf("USD balance = %s, want 990", b)
	}
}

func TestStaleClaimReleased(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.Add(-time.Hour))

	// A worker claimed the rule and died.
	if ok, _ := h.store.ClaimScheduledTransaction(ctx, r.ID, uuid.New(), h.now.Add(-10*time.Minute)); !ok {
		t.Fatal("seed claim failed")
	}

	rep := h.loop.Tick(ctx)
	if rep.Released != 1 || rep.Materialized != 1 {
		t.Errorf("tick = %+v, want stale claim released and rule materialized", rep)
	}
}

func TestFreshClaimIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	r := h.expense(t, h.now.Add(-time.Hour))
	if ok, _ := h.store.ClaimScheduledTransaction(ctx, r.ID, uuid.New(), h.now.Add(-time.Minute)); !ok {
		t.Fatal("seed claim failed")
	}

	if rep := h.loop.Tick(ctx); rep.Released != 0 || rep.Due != 0 {
		t.Errorf("tick = %+v, want the in-flight rule untouched", rep)
	}
}

func TestClaimTimeoutSkipsRule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.ClaimTimeout = 20 * time.Millisecond })
	r := h.expense(t, h.now.Add(-time.Hour))

	loop, err := New(slowClaims{h.store}, h.notifier, h.loop.cfg, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loop.Now = h.loop.Now

	start := time.Now()
	rep := loop.Tick(ctx)
	if rep.Contended != 1 || rep.Materialized != 0 {
		t.Errorf("tick = %+v, want the rule skipped", rep)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("claim wait was not bounded")
	}
	if !h.reload(t, r.ID).IsActive {
		t.Error("skipped rule changed state")
	}
}

func TestWindowPolicySkipsLateOccurrence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.EndTimePolicy = recurrence.EndTimeWindow })
	start := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	r := h.owner.Rule(must(models.Expense(h.owner.Account("USD").ID)), "10", "USD", models.FrequencyDaily, start)
	r.EndTime = &models.TimeOfDay{Hour: 9}
	if err := h.svc.CreateScheduledTransaction(ctx, r); err != nil {
		t.Fatalf("CreateScheduledTransaction: %v", err)
	}

	rep := h.loop.Tick(ctx)
	if rep.Missed != 1 || rep.Materialized != 0 {
		t.Fatalf("tick = %+v, want one missed occurrence", rep)
	}
	if kinds := h.notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindOccurrenceSkipped {
		t.Errorf("notifications = %v", kinds)
	}
	if next := h.reload(t, r.ID).NextRunAt; !next.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("NextRunAt = %v", next)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"interval above a minute", func(c *Config) { c.Interval = 2 * time.Minute }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"stale shorter than claim", func(c *Config) { c.StaleClaimAfter = c.ClaimTimeout }, true},
		{"unknown policy", func(c *Config) { c.EndTimePolicy = "sometimes" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.Interval = time.Second })
	r := h.expense(t, h.now.Add(-time.Hour))

	if err := h.loop.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.loop.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(h.produced(t, r.ID)) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.loop.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(h.produced(t, r.ID)); n != 1 {
		t.Errorf("produced %d transactions, want 1", n)
	}
}
