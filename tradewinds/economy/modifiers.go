package economy

import (
	"time"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// ModifierKind names a slot in the modifier registry. One value per
// (guild, kind) is live at a time.
type ModifierKind string

const (
	// ModIncomeMultiplier scales positive drift and passive income.
	// Multiple grants compound multiplicatively around a base of 1.0.
	ModIncomeMultiplier ModifierKind = "income_multiplier"

	// ModCostReduction shrinks negative drift. Additive, clamped.
	ModCostReduction ModifierKind = "cost_reduction"

	// ModTaxRate shifts the earnings tax rate. Additive with the base rate.
	ModTaxRate ModifierKind = "tax_rate"

	// ModTransferFee shifts the transfer fee rate. Additive with the base rate.
	ModTransferFee ModifierKind = "transfer_fee"
)

var knownModifierKinds = map[ModifierKind]bool{
	ModIncomeMultiplier: true,
	ModCostReduction:    true,
	ModTaxRate:          true,
	ModTransferFee:      true,
}

// ValidModifierKind reports whether kind names a known registry slot.
func ValidModifierKind(kind ModifierKind) bool {
	return knownModifierKinds[kind]
}

const (
	maxCostReduction = 0.5
	maxTaxRate       = 0.5
	maxTransferFee   = 0.25
)

// Rates is the fully aggregated set of effective simulation rates for
// one guild at one instant.
type Rates struct {
	IncomeMultiplier float64
	CostReduction    float64
	TaxRate          float64
	TransferFee      float64
}

// BaseRates returns the rates with no modifiers applied.
func BaseRates(taxRate, transferFee float64) Rates {
	return Rates{
		IncomeMultiplier: 1.0,
		TaxRate:          taxRate,
		TransferFee:      transferFee,
	}
}

// AggregateModifiers folds the active modifiers into the base rates.
// Income multipliers compound; the additive kinds sum and clamp to
// their caps. Expired rows are skipped so a stale read between expiry
// sweeps cannot leak an effect.
func AggregateModifiers(base Rates, mods []*models.Modifier, now time.Time) Rates {
	out := base
	for _, m := range mods {
		if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
			continue
		}
		switch ModifierKind(m.Kind) {
		case ModIncomeMultiplier:
			out.IncomeMultiplier *= m.Value
		case ModCostReduction:
			out.CostReduction += m.Value
		case ModTaxRate:
			out.TaxRate += m.Value
		case ModTransferFee:
			out.TransferFee += m.Value
		}
	}

	out.CostReduction = clamp(out.CostReduction, 0, maxCostReduction)
	out.TaxRate = clamp(out.TaxRate, 0, maxTaxRate)
	out.TransferFee = clamp(out.TransferFee, 0, maxTransferFee)
	if out.IncomeMultiplier < 0 {
		out.IncomeMultiplier = 0
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
