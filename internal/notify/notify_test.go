package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/memstore"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestStoreNotifier(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	n := StoreNotifier{Store: store}

	e := Event{Kind: KindRuleDeactivated, UserID: 3, RuleID: 12, Reason: "account 4: was deleted", OccurredAt: time.Now()}
	if err := n.Notify(ctx, e); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	var got []Event
	var messages []string
	if err := store.WithTx(ctx, func(tx ledger.Tx) error {
		notes, err := tx.ListNotifications(ctx, 3)
		for _, note := range notes {
			var ev Event
			if err := json.Unmarshal(note.Payload, &ev); err != nil {
				return err
			}
			got = append(got, ev)
			messages = append(messages, note.Message)
		}
		return err
	}); err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}

	if len(got) != 1 || got[0].Kind != KindRuleDeactivated || got[0].RuleID != 12 {
		t.Fatalf("stored events = %+v", got)
	}
	if !strings.Contains(messages[0], "#12") || !strings.Contains(messages[0], "was deleted") {
		t.Errorf("message = %q", messages[0])
	}
}

func TestLogNotifier(t *testing.T) {
	buf := &bytes.Buffer{}
	n := LogNotifier{Log: zerolog.New(buf)}
	if err := n.Notify(context.Background(), Event{Kind: KindExchangeRateMissing, UserID: 1, RuleID: 2, Failures: 3}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, `"kind":"exchange_rate_missing"`) || !strings.Contains(out, `"failures":3`) {
		t.Errorf("log output = %s", out)
	}
}

func TestMulti(t *testing.T) {
	errDown := errors.New("inbox down")
	a, b := &recorder{}, &recorder{err: errDown}
	err := Multi{a, b}.Notify(context.Background(), Event{Kind: KindOccurrenceSkipped})
	if !errors.Is(err, errDown) {
		t.Errorf("Multi error = %v, want %v", err, errDown)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d, %d", len(a.events), len(b.events))
	}
}
