package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Daily = discord.SlashCommandCreate{
	Name:        "daily",
	Description: "📅 Collect your daily stipend",
}

func DailyHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := b.Engine.Daily(ctx, e.GuildID().String(), e.User().ID.String())
		if err != nil {
			return replyEconomyError(e, err)
		}

		desc := fmt.Sprintf("Stipend collected: **%s** coins", formatCoins(res.Net))
		if res.Tax > 0 {
			desc += fmt.Sprintf(" (%s tax to the treasury)", formatCoins(res.Tax))
		}
		desc += fmt.Sprintf(".\nBalance: **%s**\nCome back in 24 hours.", formatCoins(res.NewBalance))

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "📅 Daily Stipend",
				Description: desc,
				Color:       successColor,
			}},
		})
	}
}
