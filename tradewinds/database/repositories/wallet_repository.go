package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

type walletRepository struct {
	db              *bun.DB
	limits          economy.TreasuryLimits
	startingBalance int64
}

// NewWalletRepository returns the bun-backed WalletStore. Treasury-side
// legs of wallet operations respect the same limits as the TreasuryStore.
func NewWalletRepository(db *bun.DB, limits economy.TreasuryLimits, startingBalance int64) economy.WalletStore {
	return &walletRepository{db: db, limits: limits, startingBalance: startingBalance}
}

func (r *walletRepository) GetOrCreate(ctx context.Context, guildID, userID string) (*models.Wallet, error) {
	w := new(models.Wallet)
	err := r.db.NewSelect().
		Model(w).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Scan(ctx)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	now := time.Now()
	w = &models.Wallet{
		GuildID:   guildID,
		UserID:    userID,
		Balance:   r.startingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.db.NewInsert().
		Model(w).
		On("CONFLICT (guild_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	err = r.db.NewSelect().
		Model(w).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload wallet: %w", err)
	}
	return w, nil
}

// Credit pays out an earning: amount minus tax to the wallet, tax to the
// treasury. Both legs and their audit rows land in one transaction.
func (r *walletRepository) Credit(ctx context.Context, guildID, userID string, amount, tax int64, kind models.TransactionKind, desc string) (int64, error) {
	if _, err := r.GetOrCreate(ctx, guildID, userID); err != nil {
		return 0, err
	}

	var newBalance int64
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		net := amount - tax

		var w models.Wallet
		err := tx.NewSelect().
			Model(&w).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		newBalance = w.Balance + net
		_, err = tx.NewUpdate().
			Model((*models.Wallet)(nil)).
			Set("balance = ?", newBalance).
			Set("updated_at = ?", time.Now()).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		now := time.Now()
		if _, err = tx.NewInsert().
			Model(&models.Transaction{
				Reference:   uuid.NewString(),
				GuildID:     guildID,
				ToUser:      &userID,
				Amount:      net,
				Kind:        kind,
				Description: desc,
				Timestamp:   now,
			}).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to record earning: %w", err)
		}

		if tax > 0 {
			if err := creditTreasury(ctx, tx, guildID, tax, r.limits); err != nil {
				return err
			}
			if _, err = tx.NewInsert().
				Model(&models.Transaction{
					Reference:   uuid.NewString(),
					GuildID:     guildID,
					FromUser:    &userID,
					Amount:      tax,
					Kind:        models.TxKindTax,
					Description: fmt.Sprintf("tax on %s", kind),
					Timestamp:   now,
				}).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to record tax: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Transfer moves amount from one wallet to another and routes the fee to
// the treasury. The sender is debited amount+fee or nothing at all.
func (r *walletRepository) Transfer(ctx context.Context, guildID, fromUser, toUser string, amount, fee int64) (int64, error) {
	if _, err := r.GetOrCreate(ctx, guildID, fromUser); err != nil {
		return 0, err
	}
	if _, err := r.GetOrCreate(ctx, guildID, toUser); err != nil {
		return 0, err
	}

	var senderBalance int64
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		// Lock rows in a fixed order to avoid deadlocks between
		// opposite-direction transfers
		first, second := fromUser, toUser
		if second < first {
			first, second = second, first
		}
		for _, uid := range []string{first, second} {
			var w models.Wallet
			if err := tx.NewSelect().
				Model(&w).
				Where("guild_id = ? AND user_id = ?", guildID, uid).
				For("UPDATE").
				Scan(ctx); err != nil {
				return fmt.Errorf("failed to lock wallet %s: %w", uid, err)
			}
		}

		var sender models.Wallet
		if err := tx.NewSelect().
			Model(&sender).
			Where("guild_id = ? AND user_id = ?", guildID, fromUser).
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to read sender wallet: %w", err)
		}

		total := amount + fee
		if sender.Balance < total {
			return fmt.Errorf("balance %d, transfer needs %d: %w", sender.Balance, total, economy.ErrInsufficientFunds)
		}

		now := time.Now()
		senderBalance = sender.Balance - total
		if _, err := tx.NewUpdate().
			Model((*models.Wallet)(nil)).
			Set("balance = balance - ?", total).
			Set("updated_at = ?", now).
			Where("guild_id = ? AND user_id = ?", guildID, fromUser).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*models.Wallet)(nil)).
			Set("balance = balance + ?", amount).
			Set("updated_at = ?", now).
			Where("guild_id = ? AND user_id = ?", guildID, toUser).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to credit recipient: %w", err)
		}

		if _, err := tx.NewInsert().
			Model(&models.Transaction{
				Reference: uuid.NewString(),
				GuildID:   guildID,
				FromUser:  &fromUser,
				ToUser:    &toUser,
				Amount:    amount,
				Kind:      models.TxKindTransfer,
				Timestamp: now,
			}).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}

		if fee > 0 {
			if err := creditTreasury(ctx, tx, guildID, fee, r.limits); err != nil {
				return err
			}
			if _, err := tx.NewInsert().
				Model(&models.Transaction{
					Reference: uuid.NewString(),
					GuildID:   guildID,
					FromUser:  &fromUser,
					Amount:    fee,
					Kind:      models.TxKindTransferFee,
					Timestamp: now,
				}).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to record transfer fee: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return senderBalance, nil
}

// Donate moves coins from a wallet straight into the treasury. The kind
// distinguishes plain donations from influence-action spending.
func (r *walletRepository) Donate(ctx context.Context, guildID, userID string, amount int64, kind models.TransactionKind, desc string) (int64, error) {
	if _, err := r.GetOrCreate(ctx, guildID, userID); err != nil {
		return 0, err
	}

	var newBalance int64
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		var w models.Wallet
		if err := tx.NewSelect().
			Model(&w).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		if w.Balance < amount {
			return fmt.Errorf("balance %d, donation needs %d: %w", w.Balance, amount, economy.ErrInsufficientFunds)
		}

		now := time.Now()
		newBalance = w.Balance - amount
		if _, err := tx.NewUpdate().
			Model((*models.Wallet)(nil)).
			Set("balance = balance - ?", amount).
			Set("updated_at = ?", now).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}

		if err := creditTreasury(ctx, tx, guildID, amount, r.limits); err != nil {
			return err
		}

		if _, err := tx.NewInsert().
			Model(&models.Transaction{
				Reference:   uuid.NewString(),
				GuildID:     guildID,
				FromUser:    &userID,
				Amount:      amount,
				Kind:        kind,
				Description: desc,
				Timestamp:   now,
			}).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to record donation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *walletRepository) MarkWork(ctx context.Context, guildID, userID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("last_work = ?", at).
		Set("updated_at = ?", at).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update last_work: %w", err)
	}
	return nil
}

func (r *walletRepository) MarkDaily(ctx context.Context, guildID, userID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("last_daily = ?", at).
		Set("updated_at = ?", at).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update last_daily: %w", err)
	}
	return nil
}

func (r *walletRepository) MarkInfluence(ctx context.Context, guildID, userID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("last_influence = ?", at).
		Set("updated_at = ?", at).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update last_influence: %w", err)
	}
	return nil
}

func (r *walletRepository) Leaderboard(ctx context.Context, guildID string, limit int) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.db.NewSelect().
		Model(&wallets).
		Where("guild_id = ?", guildID).
		Order("balance DESC").
		Limit(limit).
		Scan(ctx)
	return wallets, err
}

// SweepTax skims rate off every positive balance into the treasury and
// returns the total moved.
func (r *walletRepository) SweepTax(ctx context.Context, guildID string, rate float64) (int64, error) {
	if rate <= 0 {
		return 0, nil
	}

	var total int64
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		var wallets []*models.Wallet
		if err := tx.NewSelect().
			Model(&wallets).
			Where("guild_id = ? AND balance > 0", guildID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to lock wallets: %w", err)
		}

		now := time.Now()
		for _, w := range wallets {
			take := int64(math.Floor(float64(w.Balance) * rate))
			if take <= 0 {
				continue
			}
			if _, err := tx.NewUpdate().
				Model((*models.Wallet)(nil)).
				Set("balance = balance - ?", take).
				Set("updated_at = ?", now).
				Where("guild_id = ? AND user_id = ?", guildID, w.UserID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to sweep wallet %s: %w", w.UserID, err)
			}
			if _, err := tx.NewInsert().
				Model(&models.Transaction{
					Reference:   uuid.NewString(),
					GuildID:     guildID,
					FromUser:    &w.UserID,
					Amount:      take,
					Kind:        models.TxKindTax,
					Description: "periodic wealth tax",
					Timestamp:   now,
				}).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to record sweep: %w", err)
			}
			total += take
		}

		if total > 0 {
			if err := creditTreasury(ctx, tx, guildID, total, r.limits); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if total > 0 {
		slog.Info("Wealth tax swept",
			slog.String("type", "db"),
			slog.String("guild_id", guildID),
			slog.Int64("amount", total))
	}
	return total, nil
}

// creditTreasury adds amount to the guild treasury inside an open
// transaction, with the row lock, clamp and history point the
// TreasuryStore would apply.
func creditTreasury(ctx context.Context, tx bun.Tx, guildID string, amount int64, limits economy.TreasuryLimits) error {
	var ge models.GuildEconomy
	if err := tx.NewSelect().
		Model(&ge).
		Where("guild_id = ?", guildID).
		For("UPDATE").
		Scan(ctx); err != nil {
		return fmt.Errorf("failed to lock guild economy: %w", err)
	}

	now := time.Now()
	newValue := limits.Clamp(ge.Treasury.Add(decimal.NewFromInt(amount)))
	if _, err := tx.NewUpdate().
		Model((*models.GuildEconomy)(nil)).
		Set("treasury = ?", newValue).
		Set("updated_at = ?", now).
		Where("guild_id = ?", guildID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to credit treasury: %w", err)
	}

	if _, err := tx.NewInsert().
		Model(&models.TreasuryHistory{GuildID: guildID, Value: newValue, Timestamp: now}).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to append treasury history: %w", err)
	}
	return nil
}
