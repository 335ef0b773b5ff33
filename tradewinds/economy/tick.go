package economy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

const tickConcurrency = 8

// Tick advances one guild's simulation. The drift is the hourly status
// and policy contribution, scaled by modifiers and the elapsed fraction
// of an hour, with the bounded random fluctuation on top. A history
// point is always appended, even for a zero drift, so the classifier
// keeps a steady trail to read.
func (e *Engine) Tick(ctx context.Context, guildID string) error {
	err := e.guard.Do(ctx, guildID, func() error {
		ge, err := e.treasury.GetOrCreate(ctx, guildID)
		if err != nil {
			return err
		}

		now := e.now()
		elapsed := now.Sub(ge.LastTick)
		if elapsed < e.cfg.MinTickElapsed {
			return nil
		}

		status := EconomicStatus(ge.EconomicStatus)
		policy := TradePolicy(ge.TradePolicy)

		rates, err := e.EffectiveRates(ctx, guildID)
		if err != nil {
			return err
		}

		base := status.Effect().TreasuryPerHour + policy.Effect().TreasuryPerHour
		if base >= 0 {
			base *= rates.IncomeMultiplier
		} else {
			base *= 1 - rates.CostReduction
		}

		amount := base * elapsed.Hours() * e.fluctuation()
		delta := decimal.NewFromFloat(amount).Round(2)

		newValue, err := e.treasury.ApplyDelta(ctx, guildID, delta, models.TxKindDrift,
			fmt.Sprintf("drift under %s / %s", status, policy))
		if err != nil {
			return err
		}

		if err := e.treasury.MarkTick(ctx, guildID, now); err != nil {
			return err
		}

		return e.reclassify(ctx, guildID, status, newValue)
	})
	if err != nil {
		return err
	}

	e.invalidate(guildID)
	return nil
}

// reclassify re-derives the status from the latest trail and persists a
// change. Event status overrides last exactly until this runs.
func (e *Engine) reclassify(ctx context.Context, guildID string, current EconomicStatus, value decimal.Decimal) error {
	values, err := e.treasury.RecentValues(ctx, guildID, classifierWindow)
	if err != nil {
		return err
	}

	next := Classify(values, value)
	if next == current {
		return nil
	}

	if err := e.treasury.UpdateStatus(ctx, guildID, string(next)); err != nil {
		return err
	}

	slog.Info("Economic status changed",
		slog.String("type", "eco"),
		slog.String("guild_id", guildID),
		slog.String("from", string(current)),
		slog.String("to", string(next)))
	return nil
}

// TickAll runs a drift tick for every known guild with bounded fan-out.
// A failing guild is logged and skipped so one bad row cannot stall the
// whole cycle.
func (e *Engine) TickAll(ctx context.Context) error {
	ids, err := e.treasury.GuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guilds: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tickConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := e.Tick(ctx, id); err != nil {
				slog.Error("Tick failed",
					slog.String("type", "eco"),
					slog.String("guild_id", id),
					slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

// MemberCounter supplies the active non-bot member count for a guild.
// The bot layer backs this with the gateway guild cache.
type MemberCounter interface {
	ActiveMembers(guildID string) int
}

const (
	passiveIncomeMinMult = 0.1
	passiveIncomeMaxMult = 2.0
)

// PassiveIncome credits the treasury for member activity. The per-head
// rate is scaled by the status income multiplier, clamped so neither a
// crash nor a boom fully mutes or explodes it, and stacks additively
// with drift ticks.
func (e *Engine) PassiveIncome(ctx context.Context, guildID string, activeMembers int) error {
	if activeMembers <= 0 {
		return nil
	}
	if activeMembers > e.cfg.PassiveMemberCap {
		activeMembers = e.cfg.PassiveMemberCap
	}

	err := e.guard.Do(ctx, guildID, func() error {
		ge, err := e.treasury.GetOrCreate(ctx, guildID)
		if err != nil {
			return err
		}

		now := e.now()
		if now.Sub(ge.LastPassive) < e.cfg.PassiveInterval {
			return nil
		}

		status := EconomicStatus(ge.EconomicStatus)
		mult := clamp(status.Effect().IncomeMultiplier, passiveIncomeMinMult, passiveIncomeMaxMult)
		amount := decimal.NewFromInt(int64(activeMembers) * e.cfg.PassiveRate).
			Mul(decimal.NewFromFloat(mult)).Round(2)

		if _, err := e.treasury.ApplyDelta(ctx, guildID, amount, models.TxKindPassive,
			fmt.Sprintf("passive income for %d members", activeMembers)); err != nil {
			return err
		}
		return e.treasury.MarkPassive(ctx, guildID, now)
	})
	if err != nil {
		return err
	}

	e.invalidate(guildID)
	return nil
}

// PassiveIncomeAll runs the passive cycle for every known guild.
func (e *Engine) PassiveIncomeAll(ctx context.Context, counter MemberCounter) error {
	ids, err := e.treasury.GuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guilds: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tickConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := e.PassiveIncome(ctx, id, counter.ActiveMembers(id)); err != nil {
				slog.Error("Passive income failed",
					slog.String("type", "eco"),
					slog.String("guild_id", id),
					slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

// SweepModifiers drops expired modifier rows.
func (e *Engine) SweepModifiers(ctx context.Context) (int64, error) {
	n, err := e.modifiers.SweepExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Expired modifiers swept",
			slog.String("type", "eco"),
			slog.Int64("count", n))
	}
	return n, nil
}

// TrimHistoryAll caps the stored history per guild to the configured
// retention.
func (e *Engine) TrimHistoryAll(ctx context.Context) error {
	if e.cfg.HistoryRetention <= 0 {
		return nil
	}
	ids, err := e.treasury.GuildIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.treasury.TrimHistory(ctx, id, e.cfg.HistoryRetention); err != nil {
			slog.Error("History trim failed",
				slog.String("type", "eco"),
				slog.String("guild_id", id),
				slog.Any("error", err))
		}
	}
	return nil
}
