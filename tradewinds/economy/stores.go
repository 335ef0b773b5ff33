package economy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

// TreasuryLimits bound the shared treasury value. Repositories clamp
// inside the same transaction that applies a delta.
type TreasuryLimits struct {
	Start         decimal.Decimal
	Cap           decimal.Decimal
	AllowNegative bool
}

// Clamp applies the limits to a candidate treasury value.
func (l TreasuryLimits) Clamp(v decimal.Decimal) decimal.Decimal {
	if !l.AllowNegative && v.Sign() < 0 {
		return decimal.Zero
	}
	if l.Cap.Sign() > 0 && v.GreaterThan(l.Cap) {
		return l.Cap
	}
	return v
}

// TreasuryStore owns the per-guild simulation row and its history trail.
// ApplyDelta and TrySpend are atomic: value update, history point and
// audit row land in one transaction or not at all.
type TreasuryStore interface {
	GetOrCreate(ctx context.Context, guildID string) (*models.GuildEconomy, error)
	ApplyDelta(ctx context.Context, guildID string, delta decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error)
	TrySpend(ctx context.Context, guildID string, amount decimal.Decimal, kind models.TransactionKind, desc string) (decimal.Decimal, error)
	History(ctx context.Context, guildID string, since time.Time) ([]*models.TreasuryHistory, error)
	RecentValues(ctx context.Context, guildID string, n int) ([]decimal.Decimal, error)
	UpdateStatus(ctx context.Context, guildID string, status string) error
	UpdatePolicy(ctx context.Context, guildID string, policy string) error
	MarkTick(ctx context.Context, guildID string, at time.Time) error
	MarkPassive(ctx context.Context, guildID string, at time.Time) error
	SetNextEventAt(ctx context.Context, guildID string, at time.Time, bumpCount bool) error
	GuildIDs(ctx context.Context) ([]string, error)
	TrimHistory(ctx context.Context, guildID string, keep int) error
}

// ModifierStore is the single-slot-per-kind modifier registry.
type ModifierStore interface {
	Upsert(ctx context.Context, mod *models.Modifier) error
	Active(ctx context.Context, guildID string, now time.Time) ([]*models.Modifier, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// WalletStore owns member balances. Transfer and Donate move coins
// across rows (and into the treasury) in one transaction with row locks.
type WalletStore interface {
	GetOrCreate(ctx context.Context, guildID, userID string) (*models.Wallet, error)
	Credit(ctx context.Context, guildID, userID string, amount, tax int64, kind models.TransactionKind, desc string) (int64, error)
	Transfer(ctx context.Context, guildID, fromUser, toUser string, amount, fee int64) (int64, error)
	Donate(ctx context.Context, guildID, userID string, amount int64, kind models.TransactionKind, desc string) (int64, error)
	MarkWork(ctx context.Context, guildID, userID string, at time.Time) error
	MarkDaily(ctx context.Context, guildID, userID string, at time.Time) error
	MarkInfluence(ctx context.Context, guildID, userID string, at time.Time) error
	Leaderboard(ctx context.Context, guildID string, limit int) ([]*models.Wallet, error)
	SweepTax(ctx context.Context, guildID string, rate float64) (int64, error)
}

// EventStore owns event rows and votes. MarkResolved is the only path
// to a terminal state and refuses rows that already left "active".
type EventStore interface {
	Create(ctx context.Context, ev *models.EconomicEvent) error
	GetByCode(ctx context.Context, guildID, code string) (*models.EconomicEvent, error)
	Active(ctx context.Context, guildID string) ([]*models.EconomicEvent, error)
	DueForResolution(ctx context.Context, now time.Time) ([]*models.EconomicEvent, error)
	UpsertVote(ctx context.Context, eventID int64, userID string, optionIndex int) error
	VoteCounts(ctx context.Context, eventID int64) (map[int]int, error)
	MarkResolved(ctx context.Context, eventID int64, option int, status models.EventStatus, at time.Time) (bool, error)
	Recent(ctx context.Context, guildID string, limit int) ([]*models.EconomicEvent, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// TransactionStore reads the append-only audit trail.
type TransactionStore interface {
	Recent(ctx context.Context, guildID string, userID *string, limit int) ([]*models.Transaction, error)
	TotalEarned(ctx context.Context, guildID, userID string) (int64, error)
}
