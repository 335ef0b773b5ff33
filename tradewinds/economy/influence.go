package economy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// InfluenceAction is a player-triggered intervention: the member pays
// the cost from their wallet into the treasury and the guild gains a
// temporary modifier in return.
type InfluenceAction struct {
	Name        string
	Label       string
	Cost        int64
	Kind        ModifierKind
	Value       float64
	Duration    time.Duration
	Description string
}

// InfluenceActions lists every intervention a member can buy. One
// modifier slot exists per kind, so a newer action of the same kind
// replaces the older one.
var InfluenceActions = []InfluenceAction{
	{Name: "mass_sale", Label: "Mass Sale", Cost: 500, Kind: ModIncomeMultiplier, Value: 1.25, Duration: 6 * time.Hour,
		Description: "Flood the market with goods, boosting guild income"},
	{Name: "help_fund", Label: "Help Fund", Cost: 750, Kind: ModCostReduction, Value: 0.15, Duration: 12 * time.Hour,
		Description: "Pool resources to soften the guild's running costs"},
	{Name: "black_market", Label: "Black Market", Cost: 600, Kind: ModTransferFee, Value: -0.01, Duration: 8 * time.Hour,
		Description: "Open back channels that undercut transfer fees"},
	{Name: "tax_reform", Label: "Tax Reform", Cost: 800, Kind: ModTaxRate, Value: -0.02, Duration: 12 * time.Hour,
		Description: "Lobby for a lighter tax on member earnings"},
	{Name: "work_brigade", Label: "Work Brigade", Cost: 1000, Kind: ModIncomeMultiplier, Value: 1.5, Duration: 4 * time.Hour,
		Description: "Rally members for a short, intense income push"},
	{Name: "info_campaign", Label: "Info Campaign", Cost: 400, Kind: ModIncomeMultiplier, Value: 1.1, Duration: 24 * time.Hour,
		Description: "Spread the word, a small but long-lived income lift"},
}

// LookupInfluenceAction resolves an action name case-insensitively.
func LookupInfluenceAction(name string) (InfluenceAction, error) {
	for _, a := range InfluenceActions {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return InfluenceAction{}, fmt.Errorf("%w: %s", ErrUnknownInfluence, name)
}

// InfluenceResult reports a completed influence purchase.
type InfluenceResult struct {
	Action     InfluenceAction
	NewBalance int64
	ExpiresAt  time.Time
}

// Influence executes a player intervention: debit the member wallet
// into the treasury, stamp the shared influence cooldown and register
// the action's modifier. The cooldown read and stamp run inside the
// guild critical section.
func (e *Engine) Influence(ctx context.Context, guildID, userID, name string) (*InfluenceResult, error) {
	action, err := LookupInfluenceAction(name)
	if err != nil {
		return nil, err
	}
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}

	var res *InfluenceResult
	err = e.guard.Do(ctx, guildID, func() error {
		w, err := e.wallets.GetOrCreate(ctx, guildID, userID)
		if err != nil {
			return err
		}

		now := e.now()
		if w.LastInfluence != nil {
			next := w.LastInfluence.Add(e.cfg.InfluenceCooldown)
			if now.Before(next) {
				return &CooldownError{Action: "influence", Remaining: next.Sub(now)}
			}
		}

		newBalance, err := e.wallets.Donate(ctx, guildID, userID, action.Cost,
			models.TxKindInfluence, fmt.Sprintf("influence: %s", action.Label))
		if err != nil {
			return err
		}
		if err := e.wallets.MarkInfluence(ctx, guildID, userID, now); err != nil {
			return err
		}

		expires := now.Add(action.Duration)
		mod := &models.Modifier{
			GuildID:     guildID,
			Kind:        string(action.Kind),
			Value:       action.Value,
			Description: action.Label,
			ExpiresAt:   &expires,
			CreatedAt:   now,
		}
		if err := e.modifiers.Upsert(ctx, mod); err != nil {
			return err
		}

		res = &InfluenceResult{Action: action, NewBalance: newBalance, ExpiresAt: expires}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(guildID)
	slog.Info("Influence action executed",
		slog.String("type", "eco"),
		slog.String("guild_id", guildID),
		slog.String("user_id", userID),
		slog.String("action", action.Name))
	return res, nil
}
