package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Wallet is a member's personal coin balance within one guild.
type Wallet struct {
	bun.BaseModel `bun:"table:wallets,alias:w"`

	ID            int64      `bun:"id,pk,autoincrement"`
	GuildID       string     `bun:"guild_id,notnull"`
	UserID        string     `bun:"user_id,notnull"`
	Balance       int64      `bun:"balance,notnull"`
	LastWork      *time.Time `bun:"last_work"`
	LastDaily     *time.Time `bun:"last_daily"`
	LastInfluence *time.Time `bun:"last_influence"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
