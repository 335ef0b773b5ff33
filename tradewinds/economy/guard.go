package economy

import (
	"context"
	"sync"
	"time"
)

const (
	guardAttempts = 5
	guardBackoff  = 50 * time.Millisecond
)

// GuildGuard serializes treasury mutations per guild. Lock acquisition
// retries with backoff and surfaces ErrConflict once the budget is
// spent, so a stuck guild cannot wedge every caller behind it.
type GuildGuard struct {
	locks sync.Map // guildID -> chan struct{}
}

func NewGuildGuard() *GuildGuard {
	return &GuildGuard{}
}

func (g *GuildGuard) sem(guildID string) chan struct{} {
	if v, ok := g.locks.Load(guildID); ok {
		return v.(chan struct{})
	}
	sem := make(chan struct{}, 1)
	actual, _ := g.locks.LoadOrStore(guildID, sem)
	return actual.(chan struct{})
}

// Do runs fn while holding the guild's exclusive slot.
func (g *GuildGuard) Do(ctx context.Context, guildID string, fn func() error) error {
	sem := g.sem(guildID)

	acquired := false
	for attempt := 0; attempt < guardAttempts; attempt++ {
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(guardBackoff << uint(attempt)):
		}
		if acquired {
			break
		}
	}
	if !acquired {
		return ErrConflict
	}
	defer func() { <-sem }()

	return fn()
}
