package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

// In-memory stores for the event engine tests. The treasury mirrors the
// bun repository closely enough to observe applied impacts; the event
// store enforces the same active-only terminal transition.

type memTreasury struct {
	mu      sync.Mutex
	limits  economy.TreasuryLimits
	now     func() time.Time
	rows    map[string]*models.GuildEconomy
	history map[string][]decimal.Decimal
}

func newMemTreasury(limits economy.TreasuryLimits, now func() time.Time) *memTreasury {
	return &memTreasury{
		limits:  limits,
		now:     now,
		rows:    make(map[string]*models.GuildEconomy),
		history: make(map[string][]decimal.Decimal),
	}
}

func (m *memTreasury) getLocked(guildID string) *models.GuildEconomy {
	if ge, ok := m.rows[guildID]; ok {
		return ge
	}
	ge := &models.GuildEconomy{
		GuildID:        guildID,
		Treasury:       m.limits.Start,
		EconomicStatus: string(economy.StatusStable),
		TradePolicy:    string(economy.PolicyControlledTrade),
		LastTick:       m.now(),
		LastPassive:    m.now(),
	}
	m.rows[guildID] = ge
	return ge
}

func (m *memTreasury) GetOrCreate(_ context.Context, guildID string) (*models.GuildEconomy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ge := m.getLocked(guildID)
	out := *ge
	return &out, nil
}

func (m *memTreasury) ApplyDelta(_ context.Context, guildID string, delta decimal.Decimal, _ models.TransactionKind, _ string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ge := m.getLocked(guildID)
	ge.Treasury = m.limits.Clamp(ge.Treasury.Add(delta))
	m.history[guildID] = append(m.history[guildID], ge.Treasury)
	return ge.Treasury, nil
}

func (m *memTreasury) TrySpend(_ context.Context, guildID string, amount decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error) {
	m.mu.Lock()
	ge := m.getLocked(guildID)
	if ge.Treasury.LessThan(amount) {
		m.mu.Unlock()
		return ge.Treasury, economy.ErrInsufficientFunds
	}
	m.mu.Unlock()
	return m.ApplyDelta(context.Background(), guildID, amount.Neg(), kind, desc)
}

func (m *memTreasury) History(_ context.Context, _ string, _ time.Time) ([]*models.TreasuryHistory, error) {
	return nil, nil
}

func (m *memTreasury) RecentValues(_ context.Context, guildID string, n int) ([]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := m.history[guildID]
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return append([]decimal.Decimal(nil), values...), nil
}

func (m *memTreasury) UpdateStatus(_ context.Context, guildID string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getLocked(guildID).EconomicStatus = status
	return nil
}

func (m *memTreasury) UpdatePolicy(_ context.Context, guildID string, policy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getLocked(guildID).TradePolicy = policy
	return nil
}

func (m *memTreasury) MarkTick(_ context.Context, guildID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getLocked(guildID).LastTick = at
	return nil
}

func (m *memTreasury) MarkPassive(_ context.Context, guildID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getLocked(guildID).LastPassive = at
	return nil
}

func (m *memTreasury) SetNextEventAt(_ context.Context, guildID string, at time.Time, bumpCount bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ge := m.getLocked(guildID)
	ge.NextEventAt = at
	if bumpCount {
		ge.EventCount++
	}
	return nil
}

func (m *memTreasury) GuildIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memTreasury) TrimHistory(_ context.Context, _ string, _ int) error {
	return nil
}

func (m *memTreasury) value(guildID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(guildID).Treasury
}

type memModifiers struct {
	mu   sync.Mutex
	rows map[string]*models.Modifier
}

func newMemModifiers() *memModifiers {
	return &memModifiers{rows: make(map[string]*models.Modifier)}
}

func (m *memModifiers) Upsert(_ context.Context, mod *models.Modifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[mod.GuildID+"/"+mod.Kind] = mod
	return nil
}

func (m *memModifiers) Active(_ context.Context, guildID string, now time.Time) ([]*models.Modifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Modifier
	for _, mod := range m.rows {
		if mod.GuildID != guildID {
			continue
		}
		if mod.ExpiresAt != nil && !mod.ExpiresAt.After(now) {
			continue
		}
		out = append(out, mod)
	}
	return out, nil
}

func (m *memModifiers) SweepExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memEvents struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.EconomicEvent
	votes  map[int64]map[string]int
}

func newMemEvents() *memEvents {
	return &memEvents{votes: make(map[int64]map[string]int)}
}

func (m *memEvents) Create(_ context.Context, ev *models.EconomicEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	m.rows = append(m.rows, ev)
	return nil
}

func (m *memEvents) GetByCode(_ context.Context, guildID, code string) (*models.EconomicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.rows {
		if ev.GuildID == guildID && ev.Code == code {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("event %s not found: %w", code, sql.ErrNoRows)
}

func (m *memEvents) Active(_ context.Context, guildID string) ([]*models.EconomicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EconomicEvent
	for _, ev := range m.rows {
		if ev.GuildID == guildID && ev.Status == models.EventStatusActive {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEvents) DueForResolution(_ context.Context, now time.Time) ([]*models.EconomicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EconomicEvent
	for _, ev := range m.rows {
		if ev.Status == models.EventStatusActive && len(ev.Options) > 0 && !ev.ExpiresAt.After(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEvents) UpsertVote(_ context.Context, eventID int64, userID string, optionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votes[eventID] == nil {
		m.votes[eventID] = make(map[string]int)
	}
	m.votes[eventID][userID] = optionIndex
	return nil
}

func (m *memEvents) VoteCounts(_ context.Context, eventID int64) (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[int]int)
	for _, opt := range m.votes[eventID] {
		counts[opt]++
	}
	return counts, nil
}

func (m *memEvents) MarkResolved(_ context.Context, eventID int64, option int, status models.EventStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.rows {
		if ev.ID != eventID {
			continue
		}
		if ev.Status != models.EventStatusActive {
			return false, nil
		}
		ev.Status = status
		ev.ResolvedOption = option
		resolvedAt := at
		ev.ResolvedAt = &resolvedAt
		return true, nil
	}
	return false, nil
}

func (m *memEvents) Recent(_ context.Context, guildID string, limit int) ([]*models.EconomicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EconomicEvent
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].GuildID == guildID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memEvents) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.rows {
		if ev.Code == code {
			return true, nil
		}
	}
	return false, nil
}

type eventEnv struct {
	engine    *Engine
	core      *economy.Engine
	treasury  *memTreasury
	modifiers *memModifiers
	store     *memEvents
	clock     *time.Time
	clockMu   sync.Mutex
}

func (env *eventEnv) now() time.Time {
	env.clockMu.Lock()
	defer env.clockMu.Unlock()
	return *env.clock
}

func (env *eventEnv) advance(d time.Duration) {
	env.clockMu.Lock()
	defer env.clockMu.Unlock()
	*env.clock = env.clock.Add(d)
}

func newEventEnv(cfg Config) *eventEnv {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &eventEnv{clock: &start}

	coreCfg := economy.Config{
		StartingTreasury: 10_000,
		TreasuryCap:      10_000_000,
		MinTickElapsed:   time.Minute,
		TaxRate:          0.05,
		TransferFee:      0.02,
	}
	env.treasury = newMemTreasury(coreCfg.Limits(), env.now)
	env.modifiers = newMemModifiers()
	env.store = newMemEvents()

	env.core = economy.NewEngine(economy.Deps{
		Treasury:  env.treasury,
		Modifiers: env.modifiers,
		Clock:     env.now,
	}, coreCfg)

	env.engine = New(Deps{
		Store:    env.store,
		Treasury: env.treasury,
		Core:     env.core,
		Clock:    env.now,
		Rand:     rand.New(rand.NewSource(7)),
	}, cfg)
	return env
}

func TestTriggerInstantEventApplies(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	ev, err := env.engine.Trigger(ctx, "g1", models.EventKindPositive)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if ev.Status != models.EventStatusResolved {
		t.Errorf("status = %s, want resolved", ev.Status)
	}
	if ev.TreasuryImpact <= 0 {
		t.Errorf("impact = %d, want positive", ev.TreasuryImpact)
	}
	// Smallest positive template floor minus the 20% jitter.
	if ev.TreasuryImpact < 1200 || ev.TreasuryImpact > 9600 {
		t.Errorf("impact = %d, outside the jittered template range", ev.TreasuryImpact)
	}

	want := decimal.NewFromInt(10_000 + ev.TreasuryImpact)
	if got := env.treasury.value("g1"); !got.Equal(want) {
		t.Errorf("treasury = %s, want %s", got, want)
	}
	if len(ev.Code) != 4 {
		t.Errorf("code = %q, want 4 characters", ev.Code)
	}
}

func TestTriggerNegativeEventCanOverrideStatus(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	// Draw until the overriding template comes up; the pool is small.
	for i := 0; i < 50; i++ {
		ev, err := env.engine.Trigger(ctx, "g1", models.EventKindNegative)
		if err != nil {
			t.Fatalf("Trigger() error = %v", err)
		}
		if ev.StatusOverride == "" {
			continue
		}
		ge, err := env.treasury.GetOrCreate(ctx, "g1")
		if err != nil {
			t.Fatal(err)
		}
		if ge.EconomicStatus != ev.StatusOverride {
			t.Errorf("status = %s, want forced %s", ge.EconomicStatus, ev.StatusOverride)
		}
		return
	}
	t.Fatal("no overriding template drawn in 50 attempts")
}

func TestTriggerNeutralOpensVoting(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	ev, err := env.engine.Trigger(ctx, "g1", models.EventKindNeutral)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if ev.Status != models.EventStatusActive {
		t.Errorf("status = %s, want active", ev.Status)
	}
	if len(ev.Options) == 0 {
		t.Fatal("choice event has no options")
	}
	if !ev.ExpiresAt.Equal(env.now().Add(env.engine.cfg.VotingWindow)) {
		t.Errorf("expires at = %s, want one voting window out", ev.ExpiresAt)
	}
	// Nothing applies until the vote settles.
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_000)) {
		t.Errorf("treasury = %s, want untouched 10000", got)
	}
}

func TestVoteAndAdminResolve(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	ev, err := env.engine.Trigger(ctx, "g1", models.EventKindNeutral)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u1", len(ev.Options), false); err == nil {
		t.Error("out-of-range vote succeeded")
	}

	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u1", 0, false); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	// Re-voting replaces, not stacks.
	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u1", 0, false); err != nil {
		t.Fatalf("repeat Vote() error = %v", err)
	}
	counts, err := env.store.VoteCounts(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if counts[0] != 1 {
		t.Errorf("votes for option 0 = %d, want 1", counts[0])
	}

	resolved, err := env.engine.Vote(ctx, "g1", ev.Code, "admin", 0, true)
	if err != nil {
		t.Fatalf("admin Vote() error = %v", err)
	}
	if !resolved.Status.Terminal() {
		t.Errorf("status = %s, want terminal", resolved.Status)
	}
	if resolved.ResolvedOption != 0 {
		t.Errorf("resolved option = %d, want the unanimous 0", resolved.ResolvedOption)
	}

	want := decimal.NewFromInt(10_000 + ev.Options[0].TreasuryImpact)
	if got := env.treasury.value("g1"); !got.Equal(want) {
		t.Errorf("treasury = %s, want %s", got, want)
	}

	if ev.Options[0].ModifierKind != "" {
		mods, err := env.modifiers.Active(ctx, "g1", env.now())
		if err != nil {
			t.Fatal(err)
		}
		if len(mods) != 1 || mods[0].Kind != ev.Options[0].ModifierKind {
			t.Errorf("modifiers = %+v, want the winning option's grant", mods)
		}
	}

	// A settled event takes no further votes.
	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u2", 0, false); !errors.Is(err, economy.ErrEventClosed) {
		t.Errorf("vote on settled event error = %v, want ErrEventClosed", err)
	}
}

func TestResolveDueByPlurality(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	ev, err := env.engine.Trigger(ctx, "g1", models.EventKindNeutral)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u1", 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u2", 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Vote(ctx, "g1", ev.Code, "u3", 0, false); err != nil {
		t.Fatal(err)
	}

	env.advance(2 * time.Hour)
	if err := env.engine.ResolveDue(ctx); err != nil {
		t.Fatalf("ResolveDue() error = %v", err)
	}

	settled, err := env.engine.Get(ctx, "g1", ev.Code)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != models.EventStatusAutoResolved {
		t.Errorf("status = %s, want auto_resolved", settled.Status)
	}
	if settled.ResolvedOption != 1 {
		t.Errorf("resolved option = %d, want the plurality 1", settled.ResolvedOption)
	}

	want := decimal.NewFromInt(10_000 + ev.Options[1].TreasuryImpact)
	if got := env.treasury.value("g1"); !got.Equal(want) {
		t.Errorf("treasury = %s, want %s", got, want)
	}

	// Running the sweep again must not apply the outcome twice.
	if err := env.engine.ResolveDue(ctx); err != nil {
		t.Fatalf("second ResolveDue() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(want) {
		t.Errorf("treasury = %s after second sweep, want unchanged %s", got, want)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	env := newEventEnv(DefaultConfig())
	ctx := context.Background()

	ev, err := env.engine.Trigger(ctx, "g1", models.EventKindNeutral)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	before := env.treasury.value("g1")
	if err := env.engine.resolve(ctx, ev, 0, models.EventStatusResolved); err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	after := env.treasury.value("g1")

	// The second transition loses the guarded update and applies nothing.
	if err := env.engine.resolve(ctx, ev, 0, models.EventStatusResolved); err != nil {
		t.Fatalf("second resolve() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(after) {
		t.Errorf("treasury = %s after double resolve, want %s", got, after)
	}
	if before.Equal(after) && ev.Options[0].TreasuryImpact != 0 {
		t.Error("first resolve applied nothing")
	}
}

func TestMaybeSpawnSchedulesAndFires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FirstEventChance = 0 // no immediate roll, scheduling only
	env := newEventEnv(cfg)
	ctx := context.Background()

	// First check schedules without spawning.
	if err := env.engine.MaybeSpawn(ctx, "g1"); err != nil {
		t.Fatalf("MaybeSpawn() error = %v", err)
	}
	next, err := env.engine.NextEventAt(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if next.IsZero() {
		t.Fatal("next event time not scheduled")
	}
	gap := next.Sub(env.now())
	if gap < cfg.MinGap || gap > cfg.MaxGap {
		t.Errorf("gap = %s, want within [%s, %s]", gap, cfg.MinGap, cfg.MaxGap)
	}
	if evs, _ := env.store.Recent(ctx, "g1", 10); len(evs) != 0 {
		t.Errorf("events spawned early: %d", len(evs))
	}

	// Before the scheduled time nothing fires.
	if err := env.engine.MaybeSpawn(ctx, "g1"); err != nil {
		t.Fatalf("MaybeSpawn() error = %v", err)
	}
	if evs, _ := env.store.Recent(ctx, "g1", 10); len(evs) != 0 {
		t.Errorf("event fired before its time")
	}

	// Past it, one spawns and the next is scheduled.
	env.advance(25 * time.Hour)
	if err := env.engine.MaybeSpawn(ctx, "g1"); err != nil {
		t.Fatalf("MaybeSpawn() error = %v", err)
	}
	evs, _ := env.store.Recent(ctx, "g1", 10)
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	rescheduled, err := env.engine.NextEventAt(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !rescheduled.After(env.now()) {
		t.Errorf("next event %s not rescheduled past now", rescheduled)
	}
}

func TestMaybeSpawnSkipsWhileEventActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FirstEventChance = 0
	env := newEventEnv(cfg)
	ctx := context.Background()

	if _, err := env.engine.Trigger(ctx, "g1", models.EventKindNeutral); err != nil {
		t.Fatal(err)
	}

	env.advance(48 * time.Hour)
	if err := env.engine.MaybeSpawn(ctx, "g1"); err != nil {
		t.Fatalf("MaybeSpawn() error = %v", err)
	}
	evs, _ := env.store.Recent(ctx, "g1", 10)
	if len(evs) != 1 {
		t.Errorf("events = %d, want only the open one", len(evs))
	}
}
