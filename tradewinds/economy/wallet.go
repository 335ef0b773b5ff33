package economy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// EarnResult reports a cooldown-gated payout.
type EarnResult struct {
	Gross      int64
	Tax        int64
	Net        int64
	NewBalance int64
}

// TransferResult reports a completed wallet transfer.
type TransferResult struct {
	Amount        int64
	Fee           int64
	SenderBalance int64
}

// WalletInfo is the read model for a member's balance view.
type WalletInfo struct {
	Wallet      *models.Wallet
	TotalEarned int64
	Recent      []*models.Transaction
}

// Balance returns the wallet with its earning total and recent activity,
// creating the wallet on first touch.
func (e *Engine) Balance(ctx context.Context, guildID, userID string) (*WalletInfo, error) {
	w, err := e.wallets.GetOrCreate(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	earned, err := e.txs.TotalEarned(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	recent, err := e.txs.Recent(ctx, guildID, &userID, 5)
	if err != nil {
		return nil, err
	}

	return &WalletInfo{Wallet: w, TotalEarned: earned, Recent: recent}, nil
}

// Work pays out a random reward, taxed at the effective rate, once per
// cooldown window.
func (e *Engine) Work(ctx context.Context, guildID, userID string) (*EarnResult, error) {
	return e.earn(ctx, guildID, userID, earnParams{
		action:   "work",
		cooldown: e.cfg.WorkCooldown,
		gross:    e.randInt64(e.cfg.WorkMinReward, e.cfg.WorkMaxReward),
		kind:     models.TxKindWork,
		desc:     "work reward",
		last:     func(w *models.Wallet) *time.Time { return w.LastWork },
		mark:     e.wallets.MarkWork,
	})
}

// Daily pays out the fixed daily reward, taxed at the effective rate.
func (e *Engine) Daily(ctx context.Context, guildID, userID string) (*EarnResult, error) {
	return e.earn(ctx, guildID, userID, earnParams{
		action:   "daily",
		cooldown: e.cfg.DailyCooldown,
		gross:    e.cfg.DailyReward,
		kind:     models.TxKindDaily,
		desc:     "daily reward",
		last:     func(w *models.Wallet) *time.Time { return w.LastDaily },
		mark:     e.wallets.MarkDaily,
	})
}

// earnParams parametrizes one cooldown-gated payout.
type earnParams struct {
	action   string
	cooldown time.Duration
	gross    int64
	kind     models.TransactionKind
	desc     string
	last     func(*models.Wallet) *time.Time
	mark     func(context.Context, string, string, time.Time) error
}

func (e *Engine) earn(ctx context.Context, guildID, userID string, p earnParams) (*EarnResult, error) {
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}

	rates, err := e.EffectiveRates(ctx, guildID)
	if err != nil {
		return nil, err
	}
	tax := int64(math.Floor(float64(p.gross) * rates.TaxRate))

	var res *EarnResult
	err = e.guard.Do(ctx, guildID, func() error {
		// The cooldown read and the last_* stamp stay inside the
		// critical section, otherwise two concurrent invocations can
		// both observe the stale timestamp and both get paid.
		w, err := e.wallets.GetOrCreate(ctx, guildID, userID)
		if err != nil {
			return err
		}

		now := e.now()
		if last := p.last(w); last != nil {
			next := last.Add(p.cooldown)
			if now.Before(next) {
				return &CooldownError{Action: p.action, Remaining: next.Sub(now)}
			}
		}
		if err := p.mark(ctx, guildID, userID, now); err != nil {
			return err
		}

		newBalance, err := e.wallets.Credit(ctx, guildID, userID, p.gross, tax, p.kind, p.desc)
		if err != nil {
			return err
		}
		res = &EarnResult{Gross: p.gross, Tax: tax, Net: p.gross - tax, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(guildID)
	return res, nil
}

// Transfer moves coins between members. The fee comes out of the sender
// on top of the amount and lands in the treasury.
func (e *Engine) Transfer(ctx context.Context, guildID, fromUser, toUser string, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if fromUser == toUser {
		return nil, fmt.Errorf("cannot transfer to yourself")
	}
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}

	rates, err := e.EffectiveRates(ctx, guildID)
	if err != nil {
		return nil, err
	}
	fee := int64(math.Floor(float64(amount) * rates.TransferFee))

	var senderBalance int64
	err = e.guard.Do(ctx, guildID, func() error {
		var err error
		senderBalance, err = e.wallets.Transfer(ctx, guildID, fromUser, toUser, amount, fee)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(guildID)
	return &TransferResult{Amount: amount, Fee: fee, SenderBalance: senderBalance}, nil
}

// GrantWallet credits a member wallet without tax (admin action).
func (e *Engine) GrantWallet(ctx context.Context, guildID, userID string, amount int64, desc string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive")
	}
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return 0, err
	}

	var newBalance int64
	err := e.guard.Do(ctx, guildID, func() error {
		var err error
		newBalance, err = e.wallets.Credit(ctx, guildID, userID, amount, 0, models.TxKindGrant, desc)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.invalidate(guildID)
	return newBalance, nil
}

// Leaderboard returns the richest wallets of the guild.
func (e *Engine) Leaderboard(ctx context.Context, guildID string, limit int) ([]*models.Wallet, error) {
	return e.wallets.Leaderboard(ctx, guildID, limit)
}

// RecentTransactions returns the latest audit rows for the guild.
func (e *Engine) RecentTransactions(ctx context.Context, guildID string, limit int) ([]*models.Transaction, error) {
	return e.txs.Recent(ctx, guildID, nil, limit)
}

// WealthTaxAll skims the configured wealth tax off every wallet in every
// guild into the respective treasuries.
func (e *Engine) WealthTaxAll(ctx context.Context) error {
	if e.cfg.WealthTaxRate <= 0 {
		return nil
	}
	ids, err := e.treasury.GuildIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		err := e.guard.Do(ctx, id, func() error {
			_, err := e.wallets.SweepTax(ctx, id, e.cfg.WealthTaxRate)
			return err
		})
		if err != nil {
			slog.Error("Wealth tax failed",
				slog.String("type", "eco"),
				slog.String("guild_id", id),
				slog.Any("error", err))
			continue
		}
		e.invalidate(id)
	}
	return nil
}
