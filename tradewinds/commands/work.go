package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Work = discord.SlashCommandCreate{
	Name:        "work",
	Description: "💼 Work a shift for a random payout",
}

func WorkHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := b.Engine.Work(ctx, e.GuildID().String(), e.User().ID.String())
		if err != nil {
			return replyEconomyError(e, err)
		}

		desc := fmt.Sprintf("You earned **%s** coins", formatCoins(res.Net))
		if res.Tax > 0 {
			desc += fmt.Sprintf(" (%s gross, %s tax to the treasury)", formatCoins(res.Gross), formatCoins(res.Tax))
		}
		desc += fmt.Sprintf(".\nBalance: **%s**", formatCoins(res.NewBalance))

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "💼 Shift Complete",
				Description: desc,
				Color:       successColor,
			}},
		})
	}
}
