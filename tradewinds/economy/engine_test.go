package economy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

func TestTickAppliesDrift(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	// Stable Growth (+50/h) under Balanced Trade (+25/h), one hour
	// elapsed, zero fluctuation: exactly +75.
	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if err := env.treasury.UpdatePolicy(ctx, "g1", string(PolicyBalancedTrade)); err != nil {
		t.Fatal(err)
	}

	env.clock.advance(time.Hour)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_075)) {
		t.Errorf("treasury = %s, want 10075", got)
	}
	if n := env.treasury.historyLen("g1"); n != 1 {
		t.Errorf("history points = %d, want 1", n)
	}
}

func TestTickScalesWithElapsedTime(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	// Stable (+50/h) under the default Controlled Trade (0/h) for half
	// an hour: +25.
	env.clock.advance(30 * time.Minute)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_025)) {
		t.Errorf("treasury = %s, want 10025", got)
	}
}

func TestTickSkipsWhenTooSoon(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	env.clock.advance(10 * time.Second)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if n := env.treasury.historyLen("g1"); n != 0 {
		t.Errorf("history points = %d, want 0 for a skipped tick", n)
	}
}

func TestTickNegativeDriftUsesCostReduction(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	// Recession (-100/h) under Autarky (-50/h) with half the costs
	// reduced: -150 * 0.5 = -75.
	if err := env.treasury.UpdateStatus(ctx, "g1", string(StatusRecession)); err != nil {
		t.Fatal(err)
	}
	if err := env.treasury.UpdatePolicy(ctx, "g1", string(PolicyAutarky)); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.ApplyModifier(ctx, "g1", ModCostReduction, 0.5, "test", 0); err != nil {
		t.Fatal(err)
	}

	env.clock.advance(time.Hour)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(9_925)) {
		t.Errorf("treasury = %s, want 9925", got)
	}
}

func TestTickReclassifiesStatus(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	// Build a collapsing trail, then tick. The classifier must pull the
	// status down from Stable.
	for _, v := range []int64{-3000, -3000, -3000} {
		if _, err := env.treasury.ApplyDelta(ctx, "g1", decimal.NewFromInt(v), models.TxKindEvent, "test"); err != nil {
			t.Fatal(err)
		}
	}

	env.clock.advance(time.Hour)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	ge, err := env.treasury.GetOrCreate(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	got := EconomicStatus(ge.EconomicStatus)
	if got.Index() >= StatusStable.Index() {
		t.Errorf("status = %s, want something below Stable Growth", got)
	}
}

func TestDonate(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	balance, err := env.engine.Donate(ctx, "g1", "u1", 40)
	if err != nil {
		t.Fatalf("Donate() error = %v", err)
	}
	if balance != 60 {
		t.Errorf("balance = %d, want 60", balance)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_040)) {
		t.Errorf("treasury = %s, want 10040", got)
	}

	if _, err := env.engine.Donate(ctx, "g1", "u1", 1000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdrawn donation error = %v, want ErrInsufficientFunds", err)
	}
}

func TestSetTradePolicy(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	policy, cost, err := env.engine.SetTradePolicy(ctx, "g1", "balanced")
	if err != nil {
		t.Fatalf("SetTradePolicy() error = %v", err)
	}
	if policy != PolicyBalancedTrade {
		t.Errorf("policy = %s, want Balanced Trade", policy)
	}
	// One step from Controlled Trade at the Stable cost multiplier of
	// 1.0: 500 flat.
	if cost != 500 {
		t.Errorf("cost = %d, want 500", cost)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(9_500)) {
		t.Errorf("treasury = %s, want 9500", got)
	}

	if _, _, err := env.engine.SetTradePolicy(ctx, "g1", "balanced"); !errors.Is(err, ErrSamePolicy) {
		t.Errorf("repeat switch error = %v, want ErrSamePolicy", err)
	}
	if _, _, err := env.engine.SetTradePolicy(ctx, "g1", "mercantilism"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("unknown policy error = %v, want ErrUnknownPolicy", err)
	}
}

func TestSetTradePolicyCostScalesWithStatus(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	// Crash doubles administrative costs.
	if err := env.treasury.UpdateStatus(ctx, "g1", string(StatusCrash)); err != nil {
		t.Fatal(err)
	}

	_, cost, err := env.engine.SetTradePolicy(ctx, "g1", "Balanced Trade")
	if err != nil {
		t.Fatalf("SetTradePolicy() error = %v", err)
	}
	if cost != 1000 {
		t.Errorf("cost = %d, want 1000", cost)
	}
}

func TestSetTradePolicyInsufficientTreasury(t *testing.T) {
	cfg := testConfig()
	cfg.StartingTreasury = 300
	env := newTestEnv(cfg)
	ctx := context.Background()

	_, _, err := env.engine.SetTradePolicy(ctx, "g1", "Free Trade")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("SetTradePolicy() error = %v, want ErrInsufficientFunds", err)
	}

	// A refused switch must leave both policy and treasury untouched.
	ge, err := env.treasury.GetOrCreate(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if ge.TradePolicy != string(PolicyControlledTrade) {
		t.Errorf("policy = %s, want unchanged Controlled Trade", ge.TradePolicy)
	}
	if !ge.Treasury.Equal(decimal.NewFromInt(300)) {
		t.Errorf("treasury = %s, want unchanged 300", ge.Treasury)
	}
}

func TestAdminSpend(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	scaled, newValue, err := env.engine.AdminSpend(ctx, "g1", 1000, "festival")
	if err != nil {
		t.Fatalf("AdminSpend() error = %v", err)
	}
	if scaled != 1000 {
		t.Errorf("scaled = %d, want 1000 at Stable", scaled)
	}
	if !newValue.Equal(decimal.NewFromInt(9_000)) {
		t.Errorf("treasury = %s, want 9000", newValue)
	}

	// TrySpend beyond the balance must refuse without mutating.
	before := env.treasury.value("g1")
	if _, _, err := env.engine.AdminSpend(ctx, "g1", 50_000, "fleet"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("AdminSpend() error = %v, want ErrInsufficientFunds", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(before) {
		t.Errorf("treasury moved on a refused spend: %s -> %s", before, got)
	}
}

func TestTrySpendNoPartialMutation(t *testing.T) {
	cfg := testConfig()
	cfg.StartingTreasury = 300
	env := newTestEnv(cfg)
	ctx := context.Background()

	if _, err := env.treasury.TrySpend(ctx, "g1", decimal.NewFromInt(500), models.TxKindAdminSpend, "test"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("TrySpend(500) error = %v, want ErrInsufficientFunds", err)
	}
	if n := env.treasury.historyLen("g1"); n != 0 {
		t.Errorf("refused spend wrote %d history points", n)
	}

	newValue, err := env.treasury.TrySpend(ctx, "g1", decimal.NewFromInt(300), models.TxKindAdminSpend, "test")
	if err != nil {
		t.Fatalf("TrySpend(300) error = %v", err)
	}
	if !newValue.IsZero() {
		t.Errorf("treasury = %s, want 0", newValue)
	}
}

func TestApplyEventImpactOverridesStatus(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if err := env.engine.ApplyEventImpact(ctx, "g1", -4000, "market crash", StatusRecession); err != nil {
		t.Fatalf("ApplyEventImpact() error = %v", err)
	}

	ge, err := env.treasury.GetOrCreate(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !ge.Treasury.Equal(decimal.NewFromInt(6_000)) {
		t.Errorf("treasury = %s, want 6000", ge.Treasury)
	}
	if ge.EconomicStatus != string(StatusRecession) {
		t.Errorf("status = %s, want forced Economic Recession", ge.EconomicStatus)
	}
}

func TestPassiveIncome(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	// 50 members at 10 coins each under Stable (multiplier 1.0).
	env.clock.advance(5 * time.Minute)
	if err := env.engine.PassiveIncome(ctx, "g1", 50); err != nil {
		t.Fatalf("PassiveIncome() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_500)) {
		t.Errorf("treasury = %s, want 10500", got)
	}

	// Within the interval nothing more accrues.
	if err := env.engine.PassiveIncome(ctx, "g1", 50); err != nil {
		t.Fatalf("PassiveIncome() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_500)) {
		t.Errorf("treasury = %s, want 10500 inside the interval", got)
	}
}

func TestPassiveIncomeCapsMembersAndMultiplier(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	// Crash income multiplier is 0.1, exactly the clamp floor. Member
	// count caps at 1000.
	if err := env.treasury.UpdateStatus(ctx, "g1", string(StatusCrash)); err != nil {
		t.Fatal(err)
	}

	env.clock.advance(5 * time.Minute)
	if err := env.engine.PassiveIncome(ctx, "g1", 5000); err != nil {
		t.Fatalf("PassiveIncome() error = %v", err)
	}
	// 1000 * 10 * 0.1 = 1000 on top of 10000.
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(11_000)) {
		t.Errorf("treasury = %s, want 11000", got)
	}
}

func TestConcurrentDeltasConserveSum(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := env.engine.Guard().Do(ctx, "g1", func() error {
					_, err := env.treasury.ApplyDelta(ctx, "g1", decimal.NewFromInt(1), models.TxKindEvent, "test")
					return err
				})
				if err != nil {
					t.Errorf("guarded delta error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	want := decimal.NewFromInt(10_000 + workers*perWorker)
	if got := env.treasury.value("g1"); !got.Equal(want) {
		t.Errorf("treasury = %s, want %s", got, want)
	}
	if n := env.treasury.historyLen("g1"); n != workers*perWorker {
		t.Errorf("history points = %d, want %d", n, workers*perWorker)
	}
}

func TestTreasuryCapClamp(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.engine.GrantTreasury(ctx, "g1", 20_000_000, "windfall"); err != nil {
		t.Fatalf("GrantTreasury() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(10_000_000)) {
		t.Errorf("treasury = %s, want clamped 10000000", got)
	}
}

func TestForecastProjectsDrift(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	points, err := env.engine.Forecast(ctx, "g1", 3)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	// Stable (+50/h) under Controlled Trade (0/h), no fluctuation.
	for i, want := range []int64{10_050, 10_100, 10_150} {
		if !points[i].Value.Equal(decimal.NewFromInt(want)) {
			t.Errorf("point %d = %s, want %d", i, points[i].Value, want)
		}
	}
	// A projection must not write anything.
	if n := env.treasury.historyLen("g1"); n != 0 {
		t.Errorf("forecast wrote %d history points", n)
	}
}

func TestSnapshotCacheInvalidatedByWrites(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	snap, err := env.engine.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.Treasury.Equal(decimal.NewFromInt(10_000)) {
		t.Fatalf("treasury = %s, want 10000", snap.Treasury)
	}

	if _, err := env.engine.GrantTreasury(ctx, "g1", 500, "test"); err != nil {
		t.Fatal(err)
	}

	snap, err = env.engine.Snapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.Treasury.Equal(decimal.NewFromInt(10_500)) {
		t.Errorf("treasury = %s, want 10500 after write", snap.Treasury)
	}
}

func TestTrySpendFloorWithNegativeAllowed(t *testing.T) {
	cfg := testConfig()
	cfg.StartingTreasury = 300
	cfg.AllowNegative = true
	env := newTestEnv(cfg)
	ctx := context.Background()

	// Drift and event deltas may take a negative-allowed treasury below
	// zero; spends may not.
	if _, err := env.treasury.TrySpend(ctx, "g1", decimal.NewFromInt(500), models.TxKindAdminSpend, "test"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("TrySpend(500) error = %v, want ErrInsufficientFunds", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("treasury = %s, want untouched 300", got)
	}
}

func TestConcurrentSpendsNeverJointlyOverdraw(t *testing.T) {
	cfg := testConfig()
	cfg.StartingTreasury = 300
	env := newTestEnv(cfg)
	ctx := context.Background()

	const callers = 4
	var mu sync.Mutex
	var successes, refused int
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.engine.AdminSpend(ctx, "g1", 200, "op")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientFunds):
				refused++
			default:
				t.Errorf("AdminSpend() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// 300 coins cover exactly one 200 coin spend, no matter how the
	// callers interleave.
	if successes != 1 || refused != callers-1 {
		t.Errorf("successes/refused = %d/%d, want 1/%d", successes, refused, callers-1)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("treasury = %s, want 100", got)
	}
}

func TestTickAuditRowRoundsFractionalDrift(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, err := env.treasury.GetOrCreate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	// Stable (+50/h) under Controlled Trade (0/h) for 45 minutes: the
	// treasury keeps the fractional 37.5 while the integral audit
	// column rounds to 38.
	env.clock.advance(45 * time.Minute)
	if err := env.engine.Tick(ctx, "g1"); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := env.treasury.value("g1"); !got.Equal(decimal.RequireFromString("10037.5")) {
		t.Errorf("treasury = %s, want 10037.5", got)
	}

	tx := env.treasury.lastAudit("g1")
	if tx == nil || tx.Kind != models.TxKindDrift {
		t.Fatal("missing drift audit row")
	}
	if tx.Amount != 38 {
		t.Errorf("audit amount = %d, want rounded 38", tx.Amount)
	}
}
