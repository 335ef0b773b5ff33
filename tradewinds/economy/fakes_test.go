package economy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// In-memory stores backing the engine tests. Behavior mirrors the bun
// repositories: clamped atomic treasury writes, one history point per
// delta, one audit row per movement.

type fakeTreasury struct {
	mu      sync.Mutex
	limits  TreasuryLimits
	now     func() time.Time
	rows    map[string]*models.GuildEconomy
	history map[string][]*models.TreasuryHistory
	audit   []*models.Transaction
}

func newFakeTreasury(limits TreasuryLimits, now func() time.Time) *fakeTreasury {
	return &fakeTreasury{
		limits:  limits,
		now:     now,
		rows:    make(map[string]*models.GuildEconomy),
		history: make(map[string][]*models.TreasuryHistory),
	}
}

func (f *fakeTreasury) GetOrCreate(_ context.Context, guildID string) (*models.GuildEconomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreateLocked(guildID), nil
}

func (f *fakeTreasury) getOrCreateLocked(guildID string) *models.GuildEconomy {
	if ge, ok := f.rows[guildID]; ok {
		return ge
	}
	now := f.now()
	ge := &models.GuildEconomy{
		GuildID:        guildID,
		Treasury:       f.limits.Start,
		EconomicStatus: string(StatusStable),
		TradePolicy:    string(PolicyControlledTrade),
		LastTick:       now,
		LastPassive:    now,
	}
	f.rows[guildID] = ge
	return ge
}

func (f *fakeTreasury) ApplyDelta(_ context.Context, guildID string, delta decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyLocked(guildID, delta, kind, desc), nil
}

func (f *fakeTreasury) applyLocked(guildID string, delta decimal.Decimal, kind models.TransactionKind, desc string) decimal.Decimal {
	ge := f.getOrCreateLocked(guildID)
	ge.Treasury = f.limits.Clamp(ge.Treasury.Add(delta))
	f.history[guildID] = append(f.history[guildID], &models.TreasuryHistory{
		GuildID:   guildID,
		Value:     ge.Treasury,
		Timestamp: f.now(),
	})
	f.audit = append(f.audit, &models.Transaction{
		GuildID:     guildID,
		Amount:      delta.Round(0).IntPart(),
		Kind:        kind,
		Description: desc,
		Timestamp:   f.now(),
	})
	return ge.Treasury
}

func (f *fakeTreasury) TrySpend(_ context.Context, guildID string, amount decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ge := f.getOrCreateLocked(guildID)
	// Spends always respect the floor; only drift and event deltas may
	// push a negative-allowed treasury below zero.
	if ge.Treasury.LessThan(amount) {
		return ge.Treasury, fmt.Errorf("%w: treasury has %s, need %s", ErrInsufficientFunds, ge.Treasury, amount)
	}
	return f.applyLocked(guildID, amount.Neg(), kind, desc), nil
}

func (f *fakeTreasury) History(_ context.Context, guildID string, since time.Time) ([]*models.TreasuryHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TreasuryHistory
	for _, p := range f.history[guildID] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeTreasury) RecentValues(_ context.Context, guildID string, n int) ([]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := f.history[guildID]
	if len(points) > n {
		points = points[len(points)-n:]
	}
	out := make([]decimal.Decimal, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out, nil
}

func (f *fakeTreasury) UpdateStatus(_ context.Context, guildID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID).EconomicStatus = status
	return nil
}

func (f *fakeTreasury) UpdatePolicy(_ context.Context, guildID string, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID).TradePolicy = policy
	return nil
}

func (f *fakeTreasury) MarkTick(_ context.Context, guildID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID).LastTick = at
	return nil
}

func (f *fakeTreasury) MarkPassive(_ context.Context, guildID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID).LastPassive = at
	return nil
}

func (f *fakeTreasury) SetNextEventAt(_ context.Context, guildID string, at time.Time, bumpCount bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ge := f.getOrCreateLocked(guildID)
	ge.NextEventAt = at
	if bumpCount {
		ge.EventCount++
	}
	return nil
}

func (f *fakeTreasury) GuildIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeTreasury) TrimHistory(_ context.Context, guildID string, keep int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := f.history[guildID]
	if len(points) > keep {
		f.history[guildID] = points[len(points)-keep:]
	}
	return nil
}

func (f *fakeTreasury) value(guildID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreateLocked(guildID).Treasury
}

func (f *fakeTreasury) historyLen(guildID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history[guildID])
}

func (f *fakeTreasury) lastAudit(guildID string) *models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.audit) - 1; i >= 0; i-- {
		if f.audit[i].GuildID == guildID {
			return f.audit[i]
		}
	}
	return nil
}

type fakeModifiers struct {
	mu   sync.Mutex
	rows map[string]*models.Modifier // guildID + "/" + kind
}

func newFakeModifiers() *fakeModifiers {
	return &fakeModifiers{rows: make(map[string]*models.Modifier)}
}

func (f *fakeModifiers) Upsert(_ context.Context, mod *models.Modifier) error {
	if !ValidModifierKind(ModifierKind(mod.Kind)) {
		return fmt.Errorf("%w: %s", ErrUnknownModifierKind, mod.Kind)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[mod.GuildID+"/"+mod.Kind] = mod
	return nil
}

func (f *fakeModifiers) Active(_ context.Context, guildID string, now time.Time) ([]*models.Modifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Modifier
	for _, m := range f.rows {
		if m.GuildID != guildID {
			continue
		}
		if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeModifiers) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, m := range f.rows {
		if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeWallets struct {
	mu       sync.Mutex
	starting int64
	treasury *fakeTreasury
	rows     map[string]*models.Wallet
}

func newFakeWallets(starting int64, treasury *fakeTreasury) *fakeWallets {
	return &fakeWallets{
		starting: starting,
		treasury: treasury,
		rows:     make(map[string]*models.Wallet),
	}
}

func (f *fakeWallets) getOrCreateLocked(guildID, userID string) *models.Wallet {
	key := guildID + "/" + userID
	if w, ok := f.rows[key]; ok {
		return w
	}
	w := &models.Wallet{GuildID: guildID, UserID: userID, Balance: f.starting}
	f.rows[key] = w
	return w
}

func (f *fakeWallets) GetOrCreate(_ context.Context, guildID, userID string) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreateLocked(guildID, userID), nil
}

func (f *fakeWallets) Credit(_ context.Context, guildID, userID string, amount, tax int64, kind models.TransactionKind, desc string) (int64, error) {
	f.mu.Lock()
	w := f.getOrCreateLocked(guildID, userID)
	w.Balance += amount - tax
	balance := w.Balance
	f.mu.Unlock()

	f.treasury.mu.Lock()
	f.treasury.audit = append(f.treasury.audit, &models.Transaction{
		GuildID:     guildID,
		ToUser:      &userID,
		Amount:      amount - tax,
		Kind:        kind,
		Description: desc,
		Timestamp:   f.treasury.now(),
	})
	f.treasury.mu.Unlock()

	if tax > 0 {
		f.treasury.ApplyDelta(context.Background(), guildID, decimal.NewFromInt(tax), models.TxKindTax, "earnings tax")
	}
	return balance, nil
}

func (f *fakeWallets) Transfer(_ context.Context, guildID, fromUser, toUser string, amount, fee int64) (int64, error) {
	f.mu.Lock()
	from := f.getOrCreateLocked(guildID, fromUser)
	to := f.getOrCreateLocked(guildID, toUser)
	if from.Balance < amount+fee {
		balance := from.Balance
		f.mu.Unlock()
		return balance, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, balance, amount+fee)
	}
	from.Balance -= amount + fee
	to.Balance += amount
	balance := from.Balance
	f.mu.Unlock()

	if fee > 0 {
		f.treasury.ApplyDelta(context.Background(), guildID, decimal.NewFromInt(fee), models.TxKindTransferFee, "transfer fee")
	}
	return balance, nil
}

func (f *fakeWallets) Donate(_ context.Context, guildID, userID string, amount int64, kind models.TransactionKind, desc string) (int64, error) {
	f.mu.Lock()
	w := f.getOrCreateLocked(guildID, userID)
	if w.Balance < amount {
		balance := w.Balance
		f.mu.Unlock()
		return balance, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, balance, amount)
	}
	w.Balance -= amount
	balance := w.Balance
	f.mu.Unlock()

	f.treasury.ApplyDelta(context.Background(), guildID, decimal.NewFromInt(amount), kind, desc)
	return balance, nil
}

func (f *fakeWallets) MarkWork(_ context.Context, guildID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID, userID).LastWork = &at
	return nil
}

func (f *fakeWallets) MarkDaily(_ context.Context, guildID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID, userID).LastDaily = &at
	return nil
}

func (f *fakeWallets) MarkInfluence(_ context.Context, guildID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(guildID, userID).LastInfluence = &at
	return nil
}

func (f *fakeWallets) Leaderboard(_ context.Context, guildID string, limit int) ([]*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Wallet
	for _, w := range f.rows {
		if w.GuildID == guildID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeWallets) SweepTax(_ context.Context, guildID string, rate float64) (int64, error) {
	f.mu.Lock()
	var total int64
	for _, w := range f.rows {
		if w.GuildID != guildID || w.Balance <= 0 {
			continue
		}
		cut := int64(float64(w.Balance) * rate)
		w.Balance -= cut
		total += cut
	}
	f.mu.Unlock()

	if total > 0 {
		f.treasury.ApplyDelta(context.Background(), guildID, decimal.NewFromInt(total), models.TxKindTax, "wealth tax")
	}
	return total, nil
}

type fakeTransactions struct {
	treasury *fakeTreasury
}

func (f *fakeTransactions) Recent(_ context.Context, guildID string, userID *string, limit int) ([]*models.Transaction, error) {
	f.treasury.mu.Lock()
	defer f.treasury.mu.Unlock()
	var out []*models.Transaction
	for i := len(f.treasury.audit) - 1; i >= 0 && len(out) < limit; i-- {
		tx := f.treasury.audit[i]
		if tx.GuildID != guildID {
			continue
		}
		if userID != nil {
			fromMatch := tx.FromUser != nil && *tx.FromUser == *userID
			toMatch := tx.ToUser != nil && *tx.ToUser == *userID
			if !fromMatch && !toMatch {
				continue
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeTransactions) TotalEarned(_ context.Context, guildID, userID string) (int64, error) {
	f.treasury.mu.Lock()
	defer f.treasury.mu.Unlock()
	var total int64
	for _, tx := range f.treasury.audit {
		if tx.GuildID == guildID && tx.ToUser != nil && *tx.ToUser == userID && tx.Amount > 0 {
			total += tx.Amount
		}
	}
	return total, nil
}

// testEngine builds an engine over the fakes with a fixed clock and no
// fluctuation, so numeric assertions are exact.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() Config {
	return Config{
		StartingTreasury:  10_000,
		TreasuryCap:       10_000_000,
		Fluctuation:       0,
		MinTickElapsed:    time.Minute,
		PassiveInterval:   5 * time.Minute,
		PassiveRate:       10,
		PassiveMemberCap:  1000,
		StartingBalance:   100,
		WorkMinReward:     50,
		WorkMaxReward:     200,
		WorkCooldown:      time.Hour,
		DailyReward:       100,
		DailyCooldown:     24 * time.Hour,
		InfluenceCooldown: 6 * time.Hour,
		TaxRate:           0.05,
		TransferFee:       0.02,
		WealthTaxRate:     0.01,
		HistoryRetention:  10_000,
	}
}

type testEnv struct {
	engine    *Engine
	treasury  *fakeTreasury
	modifiers *fakeModifiers
	wallets   *fakeWallets
	clock     *testClock
}

func newTestEnv(cfg Config) *testEnv {
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	treasury := newFakeTreasury(cfg.Limits(), clock.now)
	modifiers := newFakeModifiers()
	wallets := newFakeWallets(cfg.StartingBalance, treasury)
	txs := &fakeTransactions{treasury: treasury}

	engine := NewEngine(Deps{
		Treasury:     treasury,
		Modifiers:    modifiers,
		Wallets:      wallets,
		Transactions: txs,
		Clock:        clock.now,
	}, cfg)

	return &testEnv{
		engine:    engine,
		treasury:  treasury,
		modifiers: modifiers,
		wallets:   wallets,
		clock:     clock,
	}
}
