package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

type economyRepository struct {
	db     *bun.DB
	limits economy.TreasuryLimits
}

// NewEconomyRepository returns the bun-backed TreasuryStore. The limits
// are applied inside every mutating transaction.
func NewEconomyRepository(db *bun.DB, limits economy.TreasuryLimits) economy.TreasuryStore {
	return &economyRepository{db: db, limits: limits}
}

func (r *economyRepository) GetOrCreate(ctx context.Context, guildID string) (*models.GuildEconomy, error) {
	ge := new(models.GuildEconomy)
	err := r.db.NewSelect().
		Model(ge).
		Where("guild_id = ?", guildID).
		Scan(ctx)
	if err == nil {
		return ge, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load guild economy: %w", err)
	}

	now := time.Now()
	ge = &models.GuildEconomy{
		GuildID:        guildID,
		Treasury:       r.limits.Start,
		EconomicStatus: string(economy.StatusStable),
		TradePolicy:    string(economy.PolicyControlledTrade),
		LastTick:       now,
		LastPassive:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = r.db.NewInsert().
		Model(ge).
		On("CONFLICT (guild_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create guild economy: %w", err)
	}

	// Re-read so a concurrent creator's row wins
	err = r.db.NewSelect().
		Model(ge).
		Where("guild_id = ?", guildID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload guild economy: %w", err)
	}

	slog.Info("Guild economy created",
		slog.String("type", "db"),
		slog.String("guild_id", guildID),
		slog.String("treasury", ge.Treasury.String()))
	return ge, nil
}

func (r *economyRepository) ApplyDelta(ctx context.Context, guildID string, delta decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error) {
	return r.mutateTreasury(ctx, guildID, kind, desc, func(current decimal.Decimal) (decimal.Decimal, error) {
		return r.limits.Clamp(current.Add(delta)), nil
	})
}

func (r *economyRepository) TrySpend(ctx context.Context, guildID string, amount decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error) {
	return r.mutateTreasury(ctx, guildID, kind, desc, func(current decimal.Decimal) (decimal.Decimal, error) {
		if current.LessThan(amount) {
			return decimal.Zero, fmt.Errorf("treasury has %s, needs %s: %w", current, amount, economy.ErrInsufficientFunds)
		}
		return current.Sub(amount), nil
	})
}

// mutateTreasury locks the guild row, computes the next value, and lands
// the update, one history point and one audit row in a single
// serializable transaction.
func (r *economyRepository) mutateTreasury(ctx context.Context, guildID string, kind models.TransactionKind, desc string, next func(decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	var newValue decimal.Decimal

	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		var ge models.GuildEconomy
		err := tx.NewSelect().
			Model(&ge).
			Where("guild_id = ?", guildID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to lock guild economy: %w", err)
		}

		newValue, err = next(ge.Treasury)
		if err != nil {
			return err
		}
		delta := newValue.Sub(ge.Treasury)

		now := time.Now()
		_, err = tx.NewUpdate().
			Model((*models.GuildEconomy)(nil)).
			Set("treasury = ?", newValue).
			Set("updated_at = ?", now).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update treasury: %w", err)
		}

		if _, err = tx.NewInsert().
			Model(&models.TreasuryHistory{GuildID: guildID, Value: newValue, Timestamp: now}).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to append treasury history: %w", err)
		}

		// The audit column is integral; round so fractional drift does
		// not truncate toward zero.
		deltaInt := delta.Round(0).IntPart()
		_, err = tx.NewInsert().
			Model(&models.Transaction{
				Reference:   uuid.NewString(),
				GuildID:     guildID,
				Amount:      deltaInt,
				Kind:        kind,
				Description: desc,
				Timestamp:   now,
			}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newValue, nil
}

func (r *economyRepository) History(ctx context.Context, guildID string, since time.Time) ([]*models.TreasuryHistory, error) {
	var points []*models.TreasuryHistory
	err := r.db.NewSelect().
		Model(&points).
		Where("guild_id = ? AND timestamp >= ?", guildID, since).
		Order("timestamp ASC").
		Scan(ctx)
	return points, err
}

func (r *economyRepository) RecentValues(ctx context.Context, guildID string, n int) ([]decimal.Decimal, error) {
	var points []*models.TreasuryHistory
	err := r.db.NewSelect().
		Model(&points).
		Where("guild_id = ?", guildID).
		Order("timestamp DESC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	// Reverse back to chronological order
	values := make([]decimal.Decimal, len(points))
	for i, p := range points {
		values[len(points)-1-i] = p.Value
	}
	return values, nil
}

func (r *economyRepository) UpdateStatus(ctx context.Context, guildID string, status string) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("economic_status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *economyRepository) UpdatePolicy(ctx context.Context, guildID string, policy string) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("trade_policy = ?", policy).
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *economyRepository) MarkTick(ctx context.Context, guildID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("last_tick = ?", at).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *economyRepository) MarkPassive(ctx context.Context, guildID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("last_passive = ?", at).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *economyRepository) SetNextEventAt(ctx context.Context, guildID string, at time.Time, bumpCount bool) error {
	q := r.db.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("next_event_at = ?", at).
		Where("guild_id = ?", guildID)
	if bumpCount {
		q = q.Set("event_count = event_count + 1")
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *economyRepository) GuildIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.GuildEconomy)(nil)).
		Column("guild_id").
		Scan(ctx, &ids)
	return ids, err
}

func (r *economyRepository) TrimHistory(ctx context.Context, guildID string, keep int) error {
	_, err := r.db.NewDelete().
		Model((*models.TreasuryHistory)(nil)).
		Where("guild_id = ? AND id NOT IN (SELECT id FROM treasury_history WHERE guild_id = ? ORDER BY timestamp DESC LIMIT ?)",
			guildID, guildID, keep).
		Exec(ctx)
	return err
}
