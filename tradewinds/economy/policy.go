package economy

import (
	"math"
	"strings"

	"github.com/sahilm/fuzzy"
)

// TradePolicy is the guild's chosen trade stance, ordered from most
// restrictive to most open.
type TradePolicy string

const (
	PolicyAutarky         TradePolicy = "Autarky"
	PolicyLimitedTrade    TradePolicy = "Limited Trade"
	PolicyControlledTrade TradePolicy = "Controlled Trade"
	PolicyBalancedTrade   TradePolicy = "Balanced Trade"
	PolicyOpenTrade       TradePolicy = "Open Trade"
	PolicyFreeTrade       TradePolicy = "Free Trade"
)

// PolicyOrder lists all policies from most restrictive to most open.
var PolicyOrder = []TradePolicy{
	PolicyAutarky,
	PolicyLimitedTrade,
	PolicyControlledTrade,
	PolicyBalancedTrade,
	PolicyOpenTrade,
	PolicyFreeTrade,
}

// PolicyEffect is the static contribution of a trade policy.
type PolicyEffect struct {
	TreasuryPerHour float64
	StabilityBonus  int
	GrowthModifier  int
	Description     string
}

var policyEffects = map[TradePolicy]PolicyEffect{
	PolicyAutarky:         {TreasuryPerHour: -50, StabilityBonus: 30, GrowthModifier: -20, Description: "Sealed borders, maximum stability, slow decay"},
	PolicyLimitedTrade:    {TreasuryPerHour: -20, StabilityBonus: 15, GrowthModifier: -10, Description: "A trickle of trade under heavy oversight"},
	PolicyControlledTrade: {TreasuryPerHour: 0, StabilityBonus: 5, GrowthModifier: 0, Description: "Managed exchange, neutral balance"},
	PolicyBalancedTrade:   {TreasuryPerHour: 25, StabilityBonus: 0, GrowthModifier: 5, Description: "Moderate openness with moderate returns"},
	PolicyOpenTrade:       {TreasuryPerHour: 75, StabilityBonus: -10, GrowthModifier: 15, Description: "Open markets, real growth, some exposure"},
	PolicyFreeTrade:       {TreasuryPerHour: 150, StabilityBonus: -25, GrowthModifier: 25, Description: "Unrestricted flow, best returns, least stability"},
}

const policyTransitionCostStep = 500

// Effect returns the effect table entry for p. Unknown policies
// contribute nothing.
func (p TradePolicy) Effect() PolicyEffect {
	if e, ok := policyEffects[p]; ok {
		return e
	}
	return PolicyEffect{}
}

// Valid reports whether p is one of the six known policies.
func (p TradePolicy) Valid() bool {
	_, ok := policyEffects[p]
	return ok
}

// Index returns the position of p in PolicyOrder, or -1.
func (p TradePolicy) Index() int {
	for i, pol := range PolicyOrder {
		if pol == p {
			return i
		}
	}
	return -1
}

// TransitionCost is the treasury price of moving between two policies,
// proportional to the distance jumped in the policy order.
func TransitionCost(from, to TradePolicy) int64 {
	fi, ti := from.Index(), to.Index()
	if fi < 0 || ti < 0 {
		return 0
	}
	return int64(math.Abs(float64(ti-fi))) * policyTransitionCostStep
}

// LookupPolicy resolves user input to a policy: exact match first,
// case-insensitive second, fuzzy last. Returns ErrUnknownPolicy when
// nothing matches.
func LookupPolicy(input string) (TradePolicy, error) {
	candidate := TradePolicy(input)
	if candidate.Valid() {
		return candidate, nil
	}

	names := make([]string, len(PolicyOrder))
	for i, p := range PolicyOrder {
		names[i] = string(p)
		if strings.EqualFold(input, names[i]) {
			return p, nil
		}
	}

	matches := fuzzy.Find(input, names)
	if len(matches) == 0 {
		return "", ErrUnknownPolicy
	}
	return TradePolicy(names[matches[0].Index]), nil
}
