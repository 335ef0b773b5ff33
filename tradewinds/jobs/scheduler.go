package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guildworks/tradewinds/tradewinds/economy"
	"github.com/guildworks/tradewinds/tradewinds/economy/events"
)

const jobTimeout = 5 * time.Minute

// Scheduler drives every periodic cycle of the simulation: drift ticks,
// passive income, modifier expiry, event spawning and resolution, the
// wealth tax and history trimming.
type Scheduler struct {
	cron   *cron.Cron
	core   *economy.Engine
	events *events.Engine
}

func NewScheduler(core *economy.Engine, evts *events.Engine) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		core:   core,
		events: evts,
	}
}

// Start registers and launches all jobs. Intervals are in minutes; the
// tick job runs often and relies on elapsed-time scaling to stay fair.
func (s *Scheduler) Start(tickMinutes, passiveMinutes int, counter economy.MemberCounter) error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{fmt.Sprintf("@every %dm", tickMinutes), "drift_tick", s.core.TickAll},
		{fmt.Sprintf("@every %dm", passiveMinutes), "passive_income", func(ctx context.Context) error {
			return s.core.PassiveIncomeAll(ctx, counter)
		}},
		{"@every 5m", "modifier_sweep", func(ctx context.Context) error {
			_, err := s.core.SweepModifiers(ctx)
			return err
		}},
		{"@every 1m", "event_cycle", func(ctx context.Context) error {
			if err := s.events.ResolveDue(ctx); err != nil {
				return err
			}
			return s.events.MaybeSpawnAll(ctx)
		}},
		{"@daily", "wealth_tax", s.core.WealthTaxAll},
		{"@daily", "history_trim", s.core.TrimHistoryAll},
	}

	for _, job := range jobs {
		name := job.name
		run := job.run
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			start := time.Now()
			if err := run(ctx); err != nil {
				slog.Error("Scheduled job failed",
					slog.String("type", "sys"),
					slog.String("job", name),
					slog.Any("error", err))
				return
			}
			slog.Debug("Scheduled job completed",
				slog.String("type", "sys"),
				slog.String("job", name),
				slog.Duration("took", time.Since(start)))
		}); err != nil {
			return fmt.Errorf("failed to register job %s: %w", name, err)
		}
	}

	s.cron.Start()
	slog.Info("Job scheduler started",
		slog.String("type", "sys"),
		slog.Int("jobs", len(jobs)))
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Job scheduler stopped", slog.String("type", "sys"))
}
