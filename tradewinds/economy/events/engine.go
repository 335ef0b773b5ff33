package events

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

// Config bounds the event cadence and voting window.
type Config struct {
	MinGap           time.Duration
	MaxGap           time.Duration
	VotingWindow     time.Duration
	FirstEventChance float64
	ImpactJitter     float64
}

func DefaultConfig() Config {
	return Config{
		MinGap:           time.Hour,
		MaxGap:           24 * time.Hour,
		VotingWindow:     time.Hour,
		FirstEventChance: 0.10,
		ImpactJitter:     0.20,
	}
}

// Deps are the collaborators of the event engine.
type Deps struct {
	Store    economy.EventStore
	Treasury economy.TreasuryStore
	Core     *economy.Engine
	Clock    func() time.Time
	Rand     *rand.Rand
}

// Engine schedules, spawns and resolves economic events. The terminal
// transition lives in the store's guarded update, so double resolution
// is structurally impossible rather than checked for.
type Engine struct {
	store    economy.EventStore
	treasury economy.TreasuryStore
	core     *economy.Engine
	cfg      Config

	now   func() time.Time
	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(deps Deps, cfg Config) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		store:    deps.Store,
		treasury: deps.Treasury,
		core:     deps.Core,
		cfg:      cfg,
		now:      deps.Clock,
		rng:      deps.Rand,
	}
}

// MaybeSpawn gives one guild its chance at an event. The first-ever
// check rolls the immediate chance; after that events fire when the
// stored next-event time passes, and each spawn schedules the next one
// a random gap out.
func (eng *Engine) MaybeSpawn(ctx context.Context, guildID string) error {
	ge, err := eng.treasury.GetOrCreate(ctx, guildID)
	if err != nil {
		return err
	}

	active, err := eng.store.Active(ctx, guildID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return nil
	}

	now := eng.now()
	if ge.NextEventAt.IsZero() {
		if ge.EventCount == 0 && eng.roll() < eng.cfg.FirstEventChance {
			_, err := eng.spawn(ctx, guildID, economy.EconomicStatus(ge.EconomicStatus))
			if err != nil {
				return err
			}
		}
		return eng.treasury.SetNextEventAt(ctx, guildID, now.Add(eng.randomGap()), false)
	}

	if now.Before(ge.NextEventAt) {
		return nil
	}

	if _, err := eng.spawn(ctx, guildID, economy.EconomicStatus(ge.EconomicStatus)); err != nil {
		return err
	}
	return eng.treasury.SetNextEventAt(ctx, guildID, now.Add(eng.randomGap()), true)
}

// MaybeSpawnAll runs the spawn check for every known guild.
func (eng *Engine) MaybeSpawnAll(ctx context.Context) error {
	ids, err := eng.treasury.GuildIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := eng.MaybeSpawn(ctx, id); err != nil {
			slog.Error("Event spawn check failed",
				slog.String("type", "eco"),
				slog.String("guild_id", id),
				slog.Any("error", err))
		}
	}
	return nil
}

// Trigger spawns an event immediately (admin action). A forced trigger
// on a choice event still opens the voting window; a forced trigger on
// an instant event applies right away.
func (eng *Engine) Trigger(ctx context.Context, guildID string, kind models.EventKind) (*models.EconomicEvent, error) {
	if _, err := eng.treasury.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}

	ev, err := eng.spawnKind(ctx, guildID, kind)
	if err != nil {
		return nil, err
	}
	if err := eng.treasury.SetNextEventAt(ctx, guildID, eng.now().Add(eng.randomGap()), true); err != nil {
		return nil, err
	}
	return ev, nil
}

func (eng *Engine) spawn(ctx context.Context, guildID string, status economy.EconomicStatus) (*models.EconomicEvent, error) {
	return eng.spawnKind(ctx, guildID, eng.drawKind(status))
}

func (eng *Engine) spawnKind(ctx context.Context, guildID string, kind models.EventKind) (*models.EconomicEvent, error) {
	pool := templatesFor(kind)
	tpl := pool[eng.intn(len(pool))]

	code, err := eng.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := eng.now()
	ev := &models.EconomicEvent{
		Code:           code,
		GuildID:        guildID,
		Kind:           tpl.Kind,
		Name:           tpl.Name,
		Description:    tpl.Description,
		TreasuryImpact: eng.jitteredImpact(tpl),
		StatusOverride: string(tpl.StatusOverride),
		Options:        tpl.Options,
		Status:         models.EventStatusActive,
		ResolvedOption: -1,
		CreatedAt:      now,
	}

	if len(tpl.Options) > 0 {
		ev.ExpiresAt = now.Add(eng.cfg.VotingWindow)
		if err := eng.store.Create(ctx, ev); err != nil {
			return nil, err
		}
		slog.Info("Choice event opened",
			slog.String("type", "eco"),
			slog.String("guild_id", guildID),
			slog.String("code", ev.Code),
			slog.String("name", ev.Name))
		return ev, nil
	}

	// Instant event: stored already resolved, applied on the spot
	ev.Status = models.EventStatusResolved
	resolvedAt := now
	ev.ResolvedAt = &resolvedAt
	ev.ExpiresAt = now
	if err := eng.store.Create(ctx, ev); err != nil {
		return nil, err
	}

	if err := eng.core.ApplyEventImpact(ctx, guildID, ev.TreasuryImpact,
		fmt.Sprintf("event: %s", ev.Name), economy.EconomicStatus(ev.StatusOverride)); err != nil {
		return nil, err
	}

	slog.Info("Event applied",
		slog.String("type", "eco"),
		slog.String("guild_id", guildID),
		slog.String("code", ev.Code),
		slog.String("name", ev.Name),
		slog.Int64("impact", ev.TreasuryImpact))
	return ev, nil
}

// Vote records a member's choice. An admin vote settles the event
// immediately in favor of the current leader.
func (eng *Engine) Vote(ctx context.Context, guildID, code, userID string, optionIndex int, admin bool) (*models.EconomicEvent, error) {
	ev, err := eng.store.GetByCode(ctx, guildID, code)
	if err != nil {
		return nil, err
	}
	if ev.Status.Terminal() {
		return nil, economy.ErrEventClosed
	}
	if optionIndex < 0 || optionIndex >= len(ev.Options) {
		return nil, fmt.Errorf("option %d out of range for event %s", optionIndex, code)
	}

	if err := eng.store.UpsertVote(ctx, ev.ID, userID, optionIndex); err != nil {
		return nil, err
	}

	if admin {
		winner, err := eng.leadingOption(ctx, ev)
		if err != nil {
			return nil, err
		}
		if err := eng.resolve(ctx, ev, winner, models.EventStatusResolved); err != nil {
			return nil, err
		}
		now := eng.now()
		ev.Status = models.EventStatusResolved
		ev.ResolvedOption = winner
		ev.ResolvedAt = &now
	}
	return ev, nil
}

// ResolveDue settles every voting event past its deadline by plurality,
// falling back to a random option when nobody voted.
func (eng *Engine) ResolveDue(ctx context.Context) error {
	due, err := eng.store.DueForResolution(ctx, eng.now())
	if err != nil {
		return err
	}

	for _, ev := range due {
		winner, err := eng.leadingOption(ctx, ev)
		if err != nil {
			slog.Error("Failed to tally event",
				slog.String("type", "eco"),
				slog.String("code", ev.Code),
				slog.Any("error", err))
			continue
		}
		if err := eng.resolve(ctx, ev, winner, models.EventStatusAutoResolved); err != nil {
			slog.Error("Failed to auto-resolve event",
				slog.String("type", "eco"),
				slog.String("code", ev.Code),
				slog.Any("error", err))
		}
	}
	return nil
}

// resolve transitions the event and applies the winning option. If the
// guarded transition loses the race the outcome was already applied by
// someone else and this is a no-op.
func (eng *Engine) resolve(ctx context.Context, ev *models.EconomicEvent, option int, status models.EventStatus) error {
	applied, err := eng.store.MarkResolved(ctx, ev.ID, option, status, eng.now())
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	impact := ev.TreasuryImpact
	override := economy.EconomicStatus(ev.StatusOverride)
	var grant *models.EventOption
	if option >= 0 && option < len(ev.Options) {
		opt := ev.Options[option]
		impact = opt.TreasuryImpact
		if opt.ModifierKind != "" {
			grant = &opt
		}
	}

	if err := eng.core.ApplyEventImpact(ctx, ev.GuildID, impact,
		fmt.Sprintf("event: %s", ev.Name), override); err != nil {
		return err
	}

	if grant != nil {
		ttl := time.Duration(grant.ModifierHours) * time.Hour
		if err := eng.core.ApplyModifier(ctx, ev.GuildID, economy.ModifierKind(grant.ModifierKind),
			grant.ModifierValue, fmt.Sprintf("event: %s", ev.Name), ttl); err != nil {
			return err
		}
	}

	slog.Info("Event resolved",
		slog.String("type", "eco"),
		slog.String("guild_id", ev.GuildID),
		slog.String("code", ev.Code),
		slog.Int("option", option),
		slog.String("outcome", string(status)))
	return nil
}

// leadingOption tallies the votes and returns the plurality winner,
// breaking ties (and the no-votes case) uniformly at random.
func (eng *Engine) leadingOption(ctx context.Context, ev *models.EconomicEvent) (int, error) {
	if len(ev.Options) == 0 {
		return -1, nil
	}

	counts, err := eng.store.VoteCounts(ctx, ev.ID)
	if err != nil {
		return -1, err
	}

	best := -1
	var leaders []int
	for i := range ev.Options {
		c := counts[i]
		switch {
		case c > best:
			best = c
			leaders = leaders[:0]
			leaders = append(leaders, i)
		case c == best:
			leaders = append(leaders, i)
		}
	}
	return leaders[eng.intn(len(leaders))], nil
}

// Active returns the guild's open events.
func (eng *Engine) Active(ctx context.Context, guildID string) ([]*models.EconomicEvent, error) {
	return eng.store.Active(ctx, guildID)
}

// Recent returns the guild's latest events, newest first.
func (eng *Engine) Recent(ctx context.Context, guildID string, limit int) ([]*models.EconomicEvent, error) {
	return eng.store.Recent(ctx, guildID, limit)
}

// Get returns one event by its public code.
func (eng *Engine) Get(ctx context.Context, guildID, code string) (*models.EconomicEvent, error) {
	return eng.store.GetByCode(ctx, guildID, code)
}

// NextEventAt reports when the guild's next scheduled event can fire.
func (eng *Engine) NextEventAt(ctx context.Context, guildID string) (time.Time, error) {
	ge, err := eng.treasury.GetOrCreate(ctx, guildID)
	if err != nil {
		return time.Time{}, err
	}
	return ge.NextEventAt, nil
}

func (eng *Engine) drawKind(status economy.EconomicStatus) models.EventKind {
	weights, ok := categoryWeights[status]
	if !ok {
		weights = categoryWeights[economy.StatusStagnation]
	}

	r := eng.roll() * (weights[0] + weights[1] + weights[2])
	switch {
	case r < weights[0]:
		return models.EventKindPositive
	case r < weights[0]+weights[1]:
		return models.EventKindNegative
	default:
		return models.EventKindNeutral
	}
}

func (eng *Engine) jitteredImpact(tpl Template) int64 {
	if tpl.MinImpact == 0 && tpl.MaxImpact == 0 {
		return 0
	}
	base := tpl.MinImpact
	if tpl.MaxImpact > tpl.MinImpact {
		base += eng.int63n(tpl.MaxImpact - tpl.MinImpact + 1)
	}
	jitter := 1 + (eng.roll()*2-1)*eng.cfg.ImpactJitter
	return int64(float64(base) * jitter)
}

const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
const codeLength = 4
const codeAttempts = 5

// generateCode draws a short public code and retries on the rare
// collision with an existing event.
func (eng *Engine) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		buf := make([]byte, codeLength)
		if _, err := crand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate event code: %w", err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)

		exists, err := eng.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique event code after %d attempts", codeAttempts)
}

// randomGap draws the delay until the next scheduled event.
func (eng *Engine) randomGap() time.Duration {
	if eng.cfg.MaxGap <= eng.cfg.MinGap {
		return eng.cfg.MinGap
	}
	span := eng.cfg.MaxGap - eng.cfg.MinGap
	return eng.cfg.MinGap + time.Duration(eng.int63n(int64(span)))
}

func (eng *Engine) roll() float64 {
	eng.rngMu.Lock()
	defer eng.rngMu.Unlock()
	return eng.rng.Float64()
}

func (eng *Engine) intn(n int) int {
	eng.rngMu.Lock()
	defer eng.rngMu.Unlock()
	return eng.rng.Intn(n)
}

func (eng *Engine) int63n(n int64) int64 {
	eng.rngMu.Lock()
	defer eng.rngMu.Unlock()
	return eng.rng.Int63n(n)
}
