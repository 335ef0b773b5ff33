package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

type modifierRepository struct {
	db *bun.DB
}

// NewModifierRepository returns the bun-backed ModifierStore.
func NewModifierRepository(db *bun.DB) economy.ModifierStore {
	return &modifierRepository{db: db}
}

// Upsert replaces the guild's slot for the modifier's kind. The unique
// (guild_id, kind) index makes the replace atomic.
func (r *modifierRepository) Upsert(ctx context.Context, mod *models.Modifier) error {
	if !economy.ValidModifierKind(economy.ModifierKind(mod.Kind)) {
		return fmt.Errorf("%w: %s", economy.ErrUnknownModifierKind, mod.Kind)
	}

	if mod.CreatedAt.IsZero() {
		mod.CreatedAt = time.Now()
	}

	_, err := r.db.NewInsert().
		Model(mod).
		On("CONFLICT (guild_id, kind) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("description = EXCLUDED.description").
		Set("created_at = EXCLUDED.created_at").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert modifier: %w", err)
	}

	slog.Info("Modifier applied",
		slog.String("type", "eco"),
		slog.String("guild_id", mod.GuildID),
		slog.String("kind", mod.Kind),
		slog.Float64("value", mod.Value))
	return nil
}

func (r *modifierRepository) Active(ctx context.Context, guildID string, now time.Time) ([]*models.Modifier, error) {
	var mods []*models.Modifier
	err := r.db.NewSelect().
		Model(&mods).
		Where("guild_id = ?", guildID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Scan(ctx)
	return mods, err
}

func (r *modifierRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Modifier)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired modifiers: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
