package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/shopspring/decimal"

	"github.com/guildworks/tradewinds/tradewinds/economy"
)

var Commands = []discord.ApplicationCommandCreate{
	Treasury,
	History,
	Forecast,
	Donate,
	Policy,
	Balance,
	Work,
	Daily,
	Transfer,
	Leaderboard,
	Influence,
	Event,
	Grant,
	Spend,
}

const (
	successColor = 0x2ECC71
	errorColor   = 0xE74C3C
	infoColor    = 0x3498DB
	warningColor = 0xF39C12
)

// formatCoins renders an amount with thousands separators.
func formatCoins(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatTreasury(v decimal.Decimal) string {
	whole := v.Truncate(0)
	frac := v.Sub(whole).Abs()
	out := formatCoins(whole.IntPart())
	if !frac.IsZero() {
		out += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return out
}

// signCoins prefixes positive amounts with + for delta displays.
func signCoins(n int64) string {
	if n > 0 {
		return "+" + formatCoins(n)
	}
	return formatCoins(n)
}

func errorEmbed(e *handler.CommandEvent, msg string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title:       "❌ Error",
			Description: msg,
			Color:       errorColor,
		}},
	})
}

// replyEconomyError maps engine errors to user-facing embeds. Unknown
// errors bubble up so the logging middleware records them.
func replyEconomyError(e *handler.CommandEvent, err error) error {
	if cd, ok := economy.AsCooldown(err); ok {
		return errorEmbed(e, fmt.Sprintf("You need to wait **%s** before using `/%s` again.", cd.Remaining.Round(time.Second), cd.Action))
	}
	switch {
	case errors.Is(err, economy.ErrInsufficientFunds):
		return errorEmbed(e, "Not enough funds to cover that.")
	case errors.Is(err, economy.ErrUnknownPolicy):
		return errorEmbed(e, "No trade policy matches that name. Try `/policy view` for the list.")
	case errors.Is(err, economy.ErrUnknownInfluence):
		return errorEmbed(e, "No influence action goes by that name.")
	case errors.Is(err, economy.ErrSamePolicy):
		return errorEmbed(e, "That trade policy is already in effect.")
	case errors.Is(err, economy.ErrEventClosed):
		return errorEmbed(e, "That event has already been resolved.")
	case errors.Is(err, economy.ErrConflict):
		return errorEmbed(e, "The economy is busy right now, try again in a moment.")
	case errors.Is(err, sql.ErrNoRows):
		return errorEmbed(e, "Nothing found under that code.")
	}
	return err
}
