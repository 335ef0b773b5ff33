package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventStatusActive       EventStatus = "active"
	EventStatusResolved     EventStatus = "resolved"
	EventStatusAutoResolved EventStatus = "auto_resolved"
	EventStatusExpired      EventStatus = "expired"
)

// Terminal reports whether the event can no longer change state.
func (s EventStatus) Terminal() bool {
	return s != EventStatusActive
}

type EventKind string

const (
	EventKindPositive EventKind = "positive"
	EventKindNegative EventKind = "negative"
	EventKindNeutral  EventKind = "neutral"
)

// EventOption is one votable outcome of a choice event.
type EventOption struct {
	Label          string  `json:"label"`
	TreasuryImpact int64   `json:"treasury_impact"`
	ModifierKind   string  `json:"modifier_kind,omitempty"`
	ModifierValue  float64 `json:"modifier_value,omitempty"`
	ModifierHours  int     `json:"modifier_hours,omitempty"`
}

// EconomicEvent is a scheduled or admin-triggered happening. Events with
// options stay active until voted out or past expires_at; events without
// options are applied on creation and stored already resolved.
type EconomicEvent struct {
	bun.BaseModel `bun:"table:economic_events,alias:ev"`

	ID             int64         `bun:"id,pk,autoincrement"`
	Code           string        `bun:"code,notnull,unique"`
	GuildID        string        `bun:"guild_id,notnull"`
	Kind           EventKind     `bun:"kind,notnull"`
	Name           string        `bun:"name,notnull"`
	Description    string        `bun:"description"`
	TreasuryImpact int64         `bun:"treasury_impact,notnull"`
	StatusOverride string        `bun:"status_override"`
	Options        []EventOption `bun:"options,type:jsonb"`
	Status         EventStatus   `bun:"status,notnull"`
	ResolvedOption int           `bun:"resolved_option,notnull,default:-1"`
	CreatedAt      time.Time     `bun:"created_at,notnull,default:current_timestamp"`
	ExpiresAt      time.Time     `bun:"expires_at"`
	ResolvedAt     *time.Time    `bun:"resolved_at"`
}

// EventVote records one member's current choice. Re-voting overwrites.
type EventVote struct {
	bun.BaseModel `bun:"table:event_votes,alias:evv"`

	ID          int64     `bun:"id,pk,autoincrement"`
	EventID     int64     `bun:"event_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	OptionIndex int       `bun:"option_index,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
