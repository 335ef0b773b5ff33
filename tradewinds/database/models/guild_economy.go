package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// GuildEconomy is the per-guild simulation state. One row per guild,
// created lazily the first time a guild touches the economy.
type GuildEconomy struct {
	bun.BaseModel `bun:"table:guild_economies,alias:ge"`

	ID             int64           `bun:"id,pk,autoincrement"`
	GuildID        string          `bun:"guild_id,notnull,unique"`
	Treasury       decimal.Decimal `bun:"treasury,notnull,type:numeric(20,2)"`
	EconomicStatus string          `bun:"economic_status,notnull"`
	TradePolicy    string          `bun:"trade_policy,notnull"`
	LastTick       time.Time       `bun:"last_tick,notnull"`
	LastPassive    time.Time       `bun:"last_passive,notnull"`
	NextEventAt    time.Time       `bun:"next_event_at"`
	EventCount     int             `bun:"event_count,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// TreasuryHistory is the append-only trail the status classifier reads.
type TreasuryHistory struct {
	bun.BaseModel `bun:"table:treasury_history,alias:th"`

	ID        int64           `bun:"id,pk,autoincrement"`
	GuildID   string          `bun:"guild_id,notnull"`
	Value     decimal.Decimal `bun:"value,notnull,type:numeric(20,2)"`
	Timestamp time.Time       `bun:"timestamp,notnull"`
}
