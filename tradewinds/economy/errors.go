package economy

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds is returned when a spend or transfer would
	// overdraw the treasury or a wallet. Nothing is mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownPolicy is returned for a trade policy name outside the table.
	ErrUnknownPolicy = errors.New("unknown trade policy")

	// ErrUnknownModifierKind is returned for a modifier kind outside the registry.
	ErrUnknownModifierKind = errors.New("unknown modifier kind")

	// ErrUnknownInfluence is returned for an influence action name outside the table.
	ErrUnknownInfluence = errors.New("unknown influence action")

	// ErrConflict is returned when a guild critical section could not be
	// entered within the retry budget.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrEventClosed is returned when voting on or resolving an event that
	// already reached a terminal state.
	ErrEventClosed = errors.New("event already closed")

	// ErrSamePolicy is returned when a policy change targets the current policy.
	ErrSamePolicy = errors.New("policy already active")
)

// CooldownError reports a rate-limited action together with the wait left.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s on cooldown for %s", e.Action, e.Remaining.Round(time.Second))
}

// AsCooldown unwraps err into a CooldownError if it carries one.
func AsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
