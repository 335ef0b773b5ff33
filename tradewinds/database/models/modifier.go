package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Modifier is a named adjustment to the effective simulation rates.
// One slot per (guild, kind): re-applying a kind replaces the old value.
type Modifier struct {
	bun.BaseModel `bun:"table:modifiers,alias:m"`

	ID          int64      `bun:"id,pk,autoincrement"`
	GuildID     string     `bun:"guild_id,notnull"`
	Kind        string     `bun:"kind,notnull"`
	Value       float64    `bun:"value,notnull"`
	Description string     `bun:"description"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt   *time.Time `bun:"expires_at"`
}
