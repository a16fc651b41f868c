// Package scheduler periodically turns due scheduled transactions into ledger
// transactions, at most once per occurrence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/notify"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/recurrence"
)

const MaxInterval = time.Minute

type Config struct {
	Interval        time.Duration
	Workers         int
	BatchSize       int
	ClaimTimeout    time.Duration
	StaleClaimAfter time.Duration
	EndTimePolicy   recurrence.EndTimePolicy
	// MissingRateNotifyAfter is how many failed runs in a row, for lack of an
	// exchange rate, trigger a notification to the owner.
	MissingRateNotifyAfter int
}

func DefaultConfig() Config {
	return Config{
		Interval:               30 * time.Second,
		Workers:                4,
		BatchSize:              100,
		ClaimTimeout:           2 * time.Second,
		StaleClaimAfter:        5 * time.Minute,
		EndTimePolicy:          recurrence.EndTimeAnnotate,
		MissingRateNotifyAfter: 3,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Interval <= 0 || c.Interval > MaxInterval:
		return fmt.Errorf("scheduler interval %s must be in (0, %s]", c.Interval, MaxInterval)
	case c.Workers <= 0:
		return fmt.Errorf("scheduler workers must be positive, got %d", c.Workers)
	case c.BatchSize <= 0:
		return fmt.Errorf("scheduler batch size must be positive, got %d", c.BatchSize)
	case c.ClaimTimeout <= 0:
		return fmt.Errorf("claim timeout must be positive, got %s", c.ClaimTimeout)
	case c.StaleClaimAfter <= c.ClaimTimeout:
		return fmt.Errorf("stale claim age %s must exceed the claim timeout %s", c.StaleClaimAfter, c.ClaimTimeout)
	case c.MissingRateNotifyAfter <= 0:
		return fmt.Errorf("missing rate notify threshold must be positive, got %d", c.MissingRateNotifyAfter)
	}
	_, err := recurrence.ParseEndTimePolicy(string(c.EndTimePolicy))
	return err
}

// Loop runs Tick on a fixed interval. Ticks of one Loop never overlap.
type Loop struct {
	repo         Repository
	materializer Materializer
	notifier     notify.Notifier
	cfg          Config
	log          zerolog.Logger

	// Now is the loop's clock.
	Now func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(repo Repository, notifier notify.Notifier, cfg Config, log zerolog.Logger) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.LogNotifier{Log: log}
	}
	return &Loop{
		repo:         repo,
		materializer: ledger.NewMaterializer(cfg.EndTimePolicy),
		notifier:     notifier,
		cfg:          cfg,
		log:          log.With().Str("component", "scheduler").Logger(),
		Now:          time.Now,
	}, nil
}

// WithMaterializer replaces how occurrences are produced.
func (l *Loop) WithMaterializer(m Materializer) *Loop {
	l.materializer = m
	return l
}

// Start schedules ticks until Stop is called or ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cron != nil {
		return errors.New("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{log: l.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := fmt.Sprintf("@every %s", l.cfg.Interval)
	if _, err := c.AddFunc(spec, func() { l.Tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	l.cron, l.cancel = c, cancel
	c.Start()
	l.log.Info().Dur("interval", l.cfg.Interval).Int("workers", l.cfg.Workers).Msg("scheduler started")
	return nil
}

// Stop prevents new ticks and waits for a running tick to finish, or for ctx.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	c, cancel := l.cron, l.cancel
	l.cron, l.cancel = nil, nil
	l.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		l.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
