package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

type eventRepository struct {
	db *bun.DB
}

// NewEventRepository returns the bun-backed EventStore.
func NewEventRepository(db *bun.DB) economy.EventStore {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, ev *models.EconomicEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(ev).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByCode(ctx context.Context, guildID, code string) (*models.EconomicEvent, error) {
	ev := new(models.EconomicEvent)
	err := r.db.NewSelect().
		Model(ev).
		Where("guild_id = ? AND code = ?", guildID, code).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s not found: %w", code, err)
		}
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) Active(ctx context.Context, guildID string) ([]*models.EconomicEvent, error) {
	var events []*models.EconomicEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("guild_id = ? AND status = ?", guildID, models.EventStatusActive).
		Order("created_at ASC").
		Scan(ctx)
	return events, err
}

func (r *eventRepository) DueForResolution(ctx context.Context, now time.Time) ([]*models.EconomicEvent, error) {
	var events []*models.EconomicEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("status = ? AND expires_at <= ?", models.EventStatusActive, now).
		Order("expires_at ASC").
		Scan(ctx)
	return events, err
}

func (r *eventRepository) UpsertVote(ctx context.Context, eventID int64, userID string, optionIndex int) error {
	vote := &models.EventVote{
		EventID:     eventID,
		UserID:      userID,
		OptionIndex: optionIndex,
		CreatedAt:   time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(vote).
		On("CONFLICT (event_id, user_id) DO UPDATE").
		Set("option_index = EXCLUDED.option_index").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

func (r *eventRepository) VoteCounts(ctx context.Context, eventID int64) (map[int]int, error) {
	var rows []struct {
		OptionIndex int `bun:"option_index"`
		Count       int `bun:"count"`
	}
	err := r.db.NewSelect().
		Model((*models.EventVote)(nil)).
		Column("option_index").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Group("option_index").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.OptionIndex] = row.Count
	}
	return counts, nil
}

// MarkResolved moves an event out of the active state. The guarded
// WHERE keeps a second resolver from re-applying the outcome: the
// caller only proceeds with side effects when this returns true.
func (r *eventRepository) MarkResolved(ctx context.Context, eventID int64, option int, status models.EventStatus, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.EconomicEvent)(nil)).
		Set("status = ?", status).
		Set("resolved_option = ?", option).
		Set("resolved_at = ?", at).
		Where("id = ? AND status = ?", eventID, models.EventStatusActive).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve event: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (r *eventRepository) Recent(ctx context.Context, guildID string, limit int) ([]*models.EconomicEvent, error) {
	var events []*models.EconomicEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	return events, err
}

func (r *eventRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.EconomicEvent)(nil)).
		Where("code = ?", code).
		Exists(ctx)
}
