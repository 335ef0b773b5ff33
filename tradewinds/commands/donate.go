package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Donate = discord.SlashCommandCreate{
	Name:        "donate",
	Description: "🎁 Donate from your wallet to the guild treasury",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "How many coins to donate",
			Required:    true,
			MinValue:    intPtr(1),
		},
	},
}

func DonateHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		amount := int64(e.SlashCommandInteractionData().Int("amount"))

		newBalance, err := b.Engine.Donate(ctx, e.GuildID().String(), e.User().ID.String(), amount)
		if err != nil {
			return replyEconomyError(e, err)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "🎁 Donation Received",
				Description: fmt.Sprintf("**%s** coins moved to the treasury.\nYour balance: **%s**",
					formatCoins(amount), formatCoins(newBalance)),
				Color: successColor,
			}},
		})
	}
}
