package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Balance = discord.SlashCommandCreate{
	Name:        "balance",
	Description: "💰 View a wallet and its recent activity",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "Whose wallet to view (default yours)",
		},
	},
}

func BalanceHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		target := e.User()
		if u, ok := e.SlashCommandInteractionData().OptUser("user"); ok {
			target = u
		}

		info, err := b.Engine.Balance(ctx, e.GuildID().String(), target.ID.String())
		if err != nil {
			return replyEconomyError(e, err)
		}

		fields := []discord.EmbedField{
			{Name: "Balance", Value: fmt.Sprintf("**%s** coins", formatCoins(info.Wallet.Balance)), Inline: boolPtr(true)},
			{Name: "Total Earned", Value: formatCoins(info.TotalEarned), Inline: boolPtr(true)},
		}

		if len(info.Recent) > 0 {
			var sb strings.Builder
			for _, tx := range info.Recent {
				amount := tx.Amount
				if tx.FromUser != nil && *tx.FromUser == target.ID.String() {
					amount = -amount
				}
				sb.WriteString(fmt.Sprintf("<t:%d:R> `%s` %s\n", tx.Timestamp.Unix(), tx.Kind, signCoins(amount)))
			}
			fields = append(fields, discord.EmbedField{Name: "Recent Activity", Value: sb.String()})
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:  fmt.Sprintf("💰 %s's Wallet", target.EffectiveName()),
				Color:  infoColor,
				Fields: fields,
			}},
		})
	}
}

func boolPtr(v bool) *bool {
	return &v
}
