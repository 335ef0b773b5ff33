package economy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// Config carries the simulation tunables. Values come from the [economy]
// config section; tests build one by hand.
type Config struct {
	StartingTreasury  int64
	TreasuryCap       int64
	AllowNegative     bool
	Fluctuation       float64
	MinTickElapsed    time.Duration
	PassiveInterval   time.Duration
	PassiveRate       int64
	PassiveMemberCap  int
	StartingBalance   int64
	WorkMinReward     int64
	WorkMaxReward     int64
	WorkCooldown      time.Duration
	DailyReward       int64
	DailyCooldown     time.Duration
	InfluenceCooldown time.Duration
	TaxRate           float64
	TransferFee       float64
	WealthTaxRate     float64
	HistoryRetention  int
}

// Limits derives the treasury bounds from the config.
func (c Config) Limits() TreasuryLimits {
	return TreasuryLimits{
		Start:         decimal.NewFromInt(c.StartingTreasury),
		Cap:           decimal.NewFromInt(c.TreasuryCap),
		AllowNegative: c.AllowNegative,
	}
}

// Deps are the collaborators of the engine. Clock and Rand default to
// the real thing when nil.
type Deps struct {
	Treasury     TreasuryStore
	Modifiers    ModifierStore
	Wallets      WalletStore
	Transactions TransactionStore
	Guard        *GuildGuard
	Clock        func() time.Time
	Rand         *rand.Rand
}

// Engine is the write path of the guild economy. Every treasury
// mutation passes through the per-guild guard; display reads go through
// a small snapshot cache.
type Engine struct {
	treasury  TreasuryStore
	modifiers ModifierStore
	wallets   WalletStore
	txs       TransactionStore
	guard     *GuildGuard
	cfg       Config

	now   func() time.Time
	rngMu sync.Mutex
	rng   *rand.Rand

	cache *lru.Cache
}

const (
	snapshotCacheSize = 256
	snapshotTTL       = 10 * time.Second
)

func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Guard == nil {
		deps.Guard = NewGuildGuard()
	}
	cache, _ := lru.New(snapshotCacheSize)

	return &Engine{
		treasury:  deps.Treasury,
		modifiers: deps.Modifiers,
		wallets:   deps.Wallets,
		txs:       deps.Transactions,
		guard:     deps.Guard,
		cfg:       cfg,
		now:       deps.Clock,
		rng:       deps.Rand,
		cache:     cache,
	}
}

// Guard exposes the per-guild critical section for collaborators that
// mutate the treasury from outside this package.
func (e *Engine) Guard() *GuildGuard {
	return e.guard
}

// Config returns the simulation tunables.
func (e *Engine) Config() Config {
	return e.cfg
}

// Snapshot is the read model served to display commands.
type Snapshot struct {
	GuildID   string
	Treasury  decimal.Decimal
	Status    EconomicStatus
	Policy    TradePolicy
	Rates     Rates
	Modifiers []*models.Modifier
	LastTick  time.Time
	NextEvent time.Time
	TakenAt   time.Time
}

type cachedSnapshot struct {
	snap *Snapshot
	at   time.Time
}

// Snapshot returns the guild's current state, cached for a few seconds
// between writes.
func (e *Engine) Snapshot(ctx context.Context, guildID string) (*Snapshot, error) {
	if v, ok := e.cache.Get(guildID); ok {
		entry := v.(cachedSnapshot)
		if e.now().Sub(entry.at) < snapshotTTL {
			return entry.snap, nil
		}
	}

	ge, err := e.treasury.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}

	mods, err := e.modifiers.Active(ctx, guildID, e.now())
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GuildID:   guildID,
		Treasury:  ge.Treasury,
		Status:    EconomicStatus(ge.EconomicStatus),
		Policy:    TradePolicy(ge.TradePolicy),
		Rates:     AggregateModifiers(BaseRates(e.cfg.TaxRate, e.cfg.TransferFee), mods, e.now()),
		Modifiers: mods,
		LastTick:  ge.LastTick,
		NextEvent: ge.NextEventAt,
		TakenAt:   e.now(),
	}
	e.cache.Add(guildID, cachedSnapshot{snap: snap, at: snap.TakenAt})
	return snap, nil
}

func (e *Engine) invalidate(guildID string) {
	e.cache.Remove(guildID)
}

// EffectiveRates aggregates the active modifiers over the base rates.
func (e *Engine) EffectiveRates(ctx context.Context, guildID string) (Rates, error) {
	mods, err := e.modifiers.Active(ctx, guildID, e.now())
	if err != nil {
		return Rates{}, err
	}
	return AggregateModifiers(BaseRates(e.cfg.TaxRate, e.cfg.TransferFee), mods, e.now()), nil
}

// ApplyModifier registers or replaces a modifier slot for the guild.
func (e *Engine) ApplyModifier(ctx context.Context, guildID string, kind ModifierKind, value float64, desc string, ttl time.Duration) error {
	if !ValidModifierKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownModifierKind, kind)
	}

	mod := &models.Modifier{
		GuildID:     guildID,
		Kind:        string(kind),
		Value:       value,
		Description: desc,
		CreatedAt:   e.now(),
	}
	if ttl > 0 {
		expires := e.now().Add(ttl)
		mod.ExpiresAt = &expires
	}

	if err := e.modifiers.Upsert(ctx, mod); err != nil {
		return err
	}
	e.invalidate(guildID)
	return nil
}

// Donate moves coins from a member wallet into the treasury.
func (e *Engine) Donate(ctx context.Context, guildID, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("donation must be positive")
	}
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return 0, err
	}

	var newBalance int64
	err := e.guard.Do(ctx, guildID, func() error {
		var err error
		newBalance, err = e.wallets.Donate(ctx, guildID, userID, amount, models.TxKindDonation, "donation to treasury")
		return err
	})
	if err != nil {
		return 0, err
	}
	e.invalidate(guildID)
	return newBalance, nil
}

// SetTradePolicy switches the guild to a new trade policy, charging the
// transition cost scaled by the current status cost multiplier.
func (e *Engine) SetTradePolicy(ctx context.Context, guildID, input string) (TradePolicy, int64, error) {
	policy, err := LookupPolicy(input)
	if err != nil {
		return "", 0, err
	}

	var cost int64
	err = e.guard.Do(ctx, guildID, func() error {
		ge, err := e.treasury.GetOrCreate(ctx, guildID)
		if err != nil {
			return err
		}

		current := TradePolicy(ge.TradePolicy)
		if current == policy {
			return ErrSamePolicy
		}

		status := EconomicStatus(ge.EconomicStatus)
		cost = int64(math.Round(float64(TransitionCost(current, policy)) * status.Effect().CostMultiplier))
		if cost > 0 {
			if _, err := e.treasury.TrySpend(ctx, guildID, decimal.NewFromInt(cost), models.TxKindPolicy,
				fmt.Sprintf("policy change %s -> %s", current, policy)); err != nil {
				return err
			}
		}

		return e.treasury.UpdatePolicy(ctx, guildID, string(policy))
	})
	if err != nil {
		return "", 0, err
	}

	e.invalidate(guildID)
	slog.Info("Trade policy changed",
		slog.String("type", "eco"),
		slog.String("guild_id", guildID),
		slog.String("policy", string(policy)),
		slog.Int64("cost", cost))
	return policy, cost, nil
}

// AdminSpend draws from the treasury for an administrative action. The
// nominal amount is scaled by the status cost multiplier, so spending in
// a crash is expensive and spending in a boom is cheap.
func (e *Engine) AdminSpend(ctx context.Context, guildID string, amount int64, desc string) (int64, decimal.Decimal, error) {
	if amount <= 0 {
		return 0, decimal.Zero, fmt.Errorf("spend amount must be positive")
	}

	var scaled int64
	var newValue decimal.Decimal
	err := e.guard.Do(ctx, guildID, func() error {
		ge, err := e.treasury.GetOrCreate(ctx, guildID)
		if err != nil {
			return err
		}

		status := EconomicStatus(ge.EconomicStatus)
		scaled = int64(math.Round(float64(amount) * status.Effect().CostMultiplier))
		newValue, err = e.treasury.TrySpend(ctx, guildID, decimal.NewFromInt(scaled), models.TxKindAdminSpend, desc)
		return err
	})
	if err != nil {
		return 0, decimal.Zero, err
	}
	e.invalidate(guildID)
	return scaled, newValue, nil
}

// GrantTreasury credits the treasury directly (admin action).
func (e *Engine) GrantTreasury(ctx context.Context, guildID string, amount int64, desc string) (decimal.Decimal, error) {
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return decimal.Zero, err
	}

	var newValue decimal.Decimal
	err := e.guard.Do(ctx, guildID, func() error {
		var err error
		newValue, err = e.treasury.ApplyDelta(ctx, guildID, decimal.NewFromInt(amount), models.TxKindGrant, desc)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	e.invalidate(guildID)
	return newValue, nil
}

// ApplyEventImpact lands an event outcome on the treasury: the delta,
// and optionally a forced status that holds until the next tick
// re-derives one from the trail.
func (e *Engine) ApplyEventImpact(ctx context.Context, guildID string, delta int64, desc string, override EconomicStatus) error {
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return err
	}

	err := e.guard.Do(ctx, guildID, func() error {
		if _, err := e.treasury.ApplyDelta(ctx, guildID, decimal.NewFromInt(delta), models.TxKindEvent, desc); err != nil {
			return err
		}
		if override != "" && override.Valid() {
			return e.treasury.UpdateStatus(ctx, guildID, string(override))
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.invalidate(guildID)
	return nil
}

// History returns the treasury trail for the trailing window.
func (e *Engine) History(ctx context.Context, guildID string, window time.Duration) ([]*models.TreasuryHistory, error) {
	if _, err := e.treasury.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}
	return e.treasury.History(ctx, guildID, e.now().Add(-window))
}

// ForecastPoint is one step of a simulated projection.
type ForecastPoint struct {
	At     time.Time
	Value  decimal.Decimal
	Status EconomicStatus
}

// Forecast projects the treasury forward hour by hour using the current
// status and policy drift with no fluctuation. It is a projection, not
// a promise: events and member activity are not simulated.
func (e *Engine) Forecast(ctx context.Context, guildID string, hours int) ([]ForecastPoint, error) {
	snap, err := e.Snapshot(ctx, guildID)
	if err != nil {
		return nil, err
	}

	limits := e.cfg.Limits()
	value := snap.Treasury
	status := snap.Status
	points := make([]ForecastPoint, 0, hours)
	trail := []decimal.Decimal{value}

	for h := 1; h <= hours; h++ {
		base := status.Effect().TreasuryPerHour + snap.Policy.Effect().TreasuryPerHour
		if base >= 0 {
			base *= snap.Rates.IncomeMultiplier
		} else {
			base *= 1 - snap.Rates.CostReduction
		}

		value = limits.Clamp(value.Add(decimal.NewFromFloat(base).Round(2)))
		trail = append(trail, value)
		status = Classify(trail, value)
		points = append(points, ForecastPoint{
			At:     snap.TakenAt.Add(time.Duration(h) * time.Hour),
			Value:  value,
			Status: status,
		})
	}
	return points, nil
}

// randInt64 returns a uniform value in [lo, hi].
func (e *Engine) randInt64(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return lo + e.rng.Int63n(hi-lo+1)
}

// fluctuation draws the bounded random factor applied to drift ticks.
func (e *Engine) fluctuation() float64 {
	if e.cfg.Fluctuation <= 0 {
		return 1
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return 1 + (e.rng.Float64()*2-1)*e.cfg.Fluctuation
}
