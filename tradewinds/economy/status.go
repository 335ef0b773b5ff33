package economy

import (
	"github.com/shopspring/decimal"
)

// EconomicStatus is the classified health of a guild economy, ordered
// from worst to best.
type EconomicStatus string

const (
	StatusCrash      EconomicStatus = "Economic Crash"
	StatusRecession  EconomicStatus = "Economic Recession"
	StatusStagnation EconomicStatus = "Economic Stagnation"
	StatusStable     EconomicStatus = "Stable Growth"
	StatusRapid      EconomicStatus = "Rapid Growth"
	StatusBoom       EconomicStatus = "Economic Boom"
)

// StatusOrder lists all statuses from worst to best.
var StatusOrder = []EconomicStatus{
	StatusCrash,
	StatusRecession,
	StatusStagnation,
	StatusStable,
	StatusRapid,
	StatusBoom,
}

// StatusEffect is the hourly contribution of a status to the simulation.
type StatusEffect struct {
	TreasuryPerHour  float64
	IncomeMultiplier float64
	CostMultiplier   float64
	Description      string
}

var statusEffects = map[EconomicStatus]StatusEffect{
	StatusCrash:      {TreasuryPerHour: -200, IncomeMultiplier: 0.1, CostMultiplier: 2.0, Description: "Treasury bleeding out, income nearly frozen"},
	StatusRecession:  {TreasuryPerHour: -100, IncomeMultiplier: 0.5, CostMultiplier: 1.5, Description: "Economy shrinking, costs elevated"},
	StatusStagnation: {TreasuryPerHour: -25, IncomeMultiplier: 0.8, CostMultiplier: 1.2, Description: "Sluggish movement, slight decay"},
	StatusStable:     {TreasuryPerHour: 50, IncomeMultiplier: 1.0, CostMultiplier: 1.0, Description: "Healthy baseline growth"},
	StatusRapid:      {TreasuryPerHour: 150, IncomeMultiplier: 1.3, CostMultiplier: 0.8, Description: "Strong expansion, cheap operations"},
	StatusBoom:       {TreasuryPerHour: 300, IncomeMultiplier: 1.8, CostMultiplier: 0.6, Description: "Everything is up and to the right"},
}

// Effect returns the effect table entry for s, falling back to stagnation
// for values that never came from this package.
func (s EconomicStatus) Effect() StatusEffect {
	if e, ok := statusEffects[s]; ok {
		return e
	}
	return statusEffects[StatusStagnation]
}

// Valid reports whether s is one of the six known statuses.
func (s EconomicStatus) Valid() bool {
	_, ok := statusEffects[s]
	return ok
}

// Index returns the position of s in StatusOrder, or -1.
func (s EconomicStatus) Index() int {
	for i, st := range StatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

const classifierWindow = 6

// Classify derives a status from the recent treasury trail. The average
// successive percentage change over the last classifierWindow points is
// mapped through fixed thresholds. Floor rules run first: a drained
// treasury is always a crash, and a treasury at or under 1000 can be
// classified no better than a recession.
func Classify(history []decimal.Decimal, current decimal.Decimal) EconomicStatus {
	if current.Sign() <= 0 {
		return StatusCrash
	}

	trend := classifyTrend(history)
	if current.LessThanOrEqual(decimal.NewFromInt(1000)) && trend.Index() > StatusRecession.Index() {
		return StatusRecession
	}
	return trend
}

func classifyTrend(history []decimal.Decimal) EconomicStatus {
	if len(history) < 2 {
		return StatusStagnation
	}
	points := history
	if len(points) > classifierWindow {
		points = points[len(points)-classifierWindow:]
	}

	var sum float64
	var count int
	for i := 1; i < len(points); i++ {
		prev, _ := points[i-1].Float64()
		cur, _ := points[i].Float64()
		if prev == 0 {
			continue
		}
		sum += (cur - prev) / prev
		count++
	}
	if count == 0 {
		return StatusStagnation
	}

	avg := sum / float64(count)
	switch {
	case avg < -0.5:
		return StatusCrash
	case avg < -0.05:
		return StatusRecession
	case avg < 0.005:
		return StatusStagnation
	case avg < 0.05:
		return StatusStable
	case avg < 0.2:
		return StatusRapid
	default:
		return StatusBoom
	}
}
