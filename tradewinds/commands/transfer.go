package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Transfer = discord.SlashCommandCreate{
	Name:        "transfer",
	Description: "💸 Send coins to another member",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "Who receives the coins",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "How many coins to send",
			Required:    true,
			MinValue:    intPtr(1),
		},
	},
}

func TransferHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		target := data.User("user")
		amount := int64(data.Int("amount"))

		if target.ID == e.User().ID {
			return errorEmbed(e, "You cannot transfer coins to yourself.")
		}
		if target.Bot {
			return errorEmbed(e, "Bots do not carry wallets.")
		}

		res, err := b.Engine.Transfer(ctx, e.GuildID().String(), e.User().ID.String(), target.ID.String(), amount)
		if err != nil {
			return replyEconomyError(e, err)
		}

		desc := fmt.Sprintf("Sent **%s** coins to %s.", formatCoins(res.Amount), target.Mention())
		if res.Fee > 0 {
			desc += fmt.Sprintf("\nTransfer fee: **%s** coins to the treasury.", formatCoins(res.Fee))
		}
		desc += fmt.Sprintf("\nYour balance: **%s**", formatCoins(res.SenderBalance))

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "💸 Transfer Complete",
				Description: desc,
				Color:       successColor,
			}},
		})
	}
}
