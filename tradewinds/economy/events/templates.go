package events

import (
	"github.com/guildworks/tradewinds/tradewinds/database/models"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

// Template is a drawable event shape. MinImpact/MaxImpact bound the
// treasury hit before the per-draw jitter; templates with Options become
// voting events instead of applying immediately.
type Template struct {
	Name           string
	Description    string
	Kind           models.EventKind
	MinImpact      int64
	MaxImpact      int64
	StatusOverride economy.EconomicStatus
	Options        []models.EventOption
}

var positiveTemplates = []Template{
	{
		Name:        "Foreign Investment Surge",
		Description: "Outside capital floods the guild markets.",
		Kind:        models.EventKindPositive,
		MinImpact:   3000,
		MaxImpact:   8000,
	},
	{
		Name:        "Trade Caravan Windfall",
		Description: "A caravan returns with far more than it left with.",
		Kind:        models.EventKindPositive,
		MinImpact:   2000,
		MaxImpact:   5000,
	},
	{
		Name:        "Resource Discovery",
		Description: "Prospectors strike a rich new vein on guild land.",
		Kind:        models.EventKindPositive,
		MinImpact:   1500,
		MaxImpact:   4000,
	},
}

var negativeTemplates = []Template{
	{
		Name:           "Market Crash",
		Description:    "Panic selling wipes out weeks of gains overnight.",
		Kind:           models.EventKindNegative,
		MinImpact:      -8000,
		MaxImpact:      -3000,
		StatusOverride: economy.StatusRecession,
	},
	{
		Name:        "Trade Embargo",
		Description: "A neighboring power closes its borders to guild goods.",
		Kind:        models.EventKindNegative,
		MinImpact:   -5000,
		MaxImpact:   -2000,
	},
	{
		Name:        "Warehouse Fire",
		Description: "Stockpiles go up in smoke before the night watch reacts.",
		Kind:        models.EventKindNegative,
		MinImpact:   -4000,
		MaxImpact:   -1500,
	},
}

var neutralTemplates = []Template{
	{
		Name:        "Merchant Guild Petition",
		Description: "The merchant guild demands a ruling on market access.",
		Kind:        models.EventKindNeutral,
		Options: []models.EventOption{
			{Label: "Grant open access", TreasuryImpact: -1000, ModifierKind: string(economy.ModIncomeMultiplier), ModifierValue: 1.2, ModifierHours: 24},
			{Label: "Charge entry levies", TreasuryImpact: 2000, ModifierKind: string(economy.ModTransferFee), ModifierValue: 0.03, ModifierHours: 24},
			{Label: "Reject the petition", TreasuryImpact: 0},
		},
	},
	{
		Name:        "Harvest Festival",
		Description: "The guild debates how lavishly to celebrate the season.",
		Kind:        models.EventKindNeutral,
		Options: []models.EventOption{
			{Label: "Fund a grand festival", TreasuryImpact: -2500, ModifierKind: string(economy.ModIncomeMultiplier), ModifierValue: 1.3, ModifierHours: 12},
			{Label: "Keep it modest", TreasuryImpact: -500, ModifierKind: string(economy.ModCostReduction), ModifierValue: 0.1, ModifierHours: 12},
		},
	},
	{
		Name:        "Tax Reform Proposal",
		Description: "The council weighs a change to the earnings tax.",
		Kind:        models.EventKindNeutral,
		Options: []models.EventOption{
			{Label: "Raise the tax", TreasuryImpact: 1000, ModifierKind: string(economy.ModTaxRate), ModifierValue: 0.05, ModifierHours: 48},
			{Label: "Cut the tax", TreasuryImpact: -1000, ModifierKind: string(economy.ModTaxRate), ModifierValue: -0.03, ModifierHours: 48},
			{Label: "Leave it alone", TreasuryImpact: 0},
		},
	},
}

// categoryWeights maps each status to [positive, negative, neutral]
// draw weights. The skew is mean reverting: bad times draw helpful
// events, good times draw corrections.
var categoryWeights = map[economy.EconomicStatus][3]float64{
	economy.StatusCrash:      {0.4, 0.1, 0.5},
	economy.StatusRecession:  {0.35, 0.2, 0.45},
	economy.StatusStagnation: {0.3, 0.3, 0.4},
	economy.StatusStable:     {0.25, 0.25, 0.5},
	economy.StatusRapid:      {0.2, 0.35, 0.45},
	economy.StatusBoom:       {0.15, 0.4, 0.45},
}

func templatesFor(kind models.EventKind) []Template {
	switch kind {
	case models.EventKindPositive:
		return positiveTemplates
	case models.EventKindNegative:
		return negativeTemplates
	default:
		return neutralTemplates
	}
}
