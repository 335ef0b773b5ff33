package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

type transactionRepository struct {
	db *bun.DB
}

// NewTransactionRepository returns the bun-backed TransactionStore.
func NewTransactionRepository(db *bun.DB) economy.TransactionStore {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Recent(ctx context.Context, guildID string, userID *string, limit int) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	q := r.db.NewSelect().
		Model(&txs).
		Where("guild_id = ?", guildID).
		Order("timestamp DESC").
		Limit(limit)
	if userID != nil {
		q = q.Where("(from_user = ? OR to_user = ?)", *userID, *userID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) TotalEarned(ctx context.Context, guildID, userID string) (int64, error) {
	var total int64
	err := r.db.NewSelect().
		Model((*models.Transaction)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("guild_id = ? AND to_user = ? AND amount > 0", guildID, userID).
		Scan(ctx, &total)
	return total, err
}
