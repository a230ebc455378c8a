package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig configures the idle-session sweeper.
type SweeperConfig struct {
	// IdleTimeout is how long a session may go without a turn before it
	// is reclaimed. Defaults to 10 minutes.
	IdleTimeout time.Duration

	// Interval is how often the sweep runs. Defaults to 1 minute.
	Interval time.Duration

	// Logger for sweep events.
	Logger *slog.Logger

	// OnSweep, if set, is called after each sweep with the eviction count.
	OnSweep func(removed int)
}

// Sweeper periodically reclaims idle sessions. Without explicit deletion
// signals from the telephony provider the session map would grow without
// bound; the sweeper is the backstop.
type Sweeper struct {
	store  *LockingStore
	config SweeperConfig
	cron   *cron.Cron
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store *LockingStore, cfg SweeperConfig) *Sweeper {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{
		store:  store,
		config: cfg,
		cron:   cron.New(),
	}
}

// Start schedules the sweep loop. The context bounds each individual
// sweep, not the scheduler itself; call Stop to shut down.
func (s *Sweeper) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.config.Interval)
	_, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("sessions: schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) runOnce(ctx context.Context) {
	removed, err := s.store.Sweep(ctx, s.config.IdleTimeout)
	if err != nil {
		s.config.Logger.Warn("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.config.Logger.Info("reclaimed idle sessions",
			"removed", removed,
			"idle_timeout", s.config.IdleTimeout.String(),
		)
	}
	if s.config.OnSweep != nil {
		s.config.OnSweep(removed)
	}
}
