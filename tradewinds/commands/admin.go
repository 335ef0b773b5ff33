package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
)

var Grant = discord.SlashCommandCreate{
	Name:        "grant",
	Description: "🛠️ Grant coins to a member or the treasury (managers only)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "How many coins to grant",
			Required:    true,
			MinValue:    intPtr(1),
		},
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "Recipient (omit to credit the treasury)",
		},
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why the grant is being made",
		},
	},
}

var Spend = discord.SlashCommandCreate{
	Name:        "spend",
	Description: "🛠️ Spend from the treasury (managers only)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Nominal amount, scaled by the economy's cost multiplier",
			Required:    true,
			MinValue:    intPtr(1),
		},
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "What the spending is for",
			Required:    true,
		},
	},
}

func GrantHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !isManager(e) {
			return errorEmbed(e, "Grants require the Manage Server permission.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		amount := int64(data.Int("amount"))
		reason, _ := data.OptString("reason")
		if reason == "" {
			reason = "admin grant"
		}

		if target, ok := data.OptUser("user"); ok {
			if target.Bot {
				return errorEmbed(e, "Bots do not carry wallets.")
			}
			newBalance, err := b.Engine.GrantWallet(ctx, e.GuildID().String(), target.ID.String(), amount, reason)
			if err != nil {
				return replyEconomyError(e, err)
			}
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title: "🛠️ Grant Issued",
					Description: fmt.Sprintf("Granted **%s** coins to %s.\nTheir balance: **%s**",
						formatCoins(amount), target.Mention(), formatCoins(newBalance)),
					Color: successColor,
				}},
			})
		}

		newValue, err := b.Engine.GrantTreasury(ctx, e.GuildID().String(), amount, reason)
		if err != nil {
			return replyEconomyError(e, err)
		}
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "🛠️ Treasury Grant",
				Description: fmt.Sprintf("Credited **%s** coins to the treasury.\nTreasury: **%s**",
					formatCoins(amount), formatTreasury(newValue)),
				Color: successColor,
			}},
		})
	}
}

func SpendHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !isManager(e) {
			return errorEmbed(e, "Treasury spending requires the Manage Server permission.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		amount := int64(data.Int("amount"))
		reason := data.String("reason")

		scaled, newValue, err := b.Engine.AdminSpend(ctx, e.GuildID().String(), amount, reason)
		if err != nil {
			return replyEconomyError(e, err)
		}

		desc := fmt.Sprintf("Spent **%s** coins on *%s*.", formatCoins(scaled), reason)
		if scaled != amount {
			desc += fmt.Sprintf("\nNominal cost %s was scaled by the current economic status.", formatCoins(amount))
		}
		desc += fmt.Sprintf("\nTreasury: **%s**", formatTreasury(newValue))

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "🛠️ Treasury Spending",
				Description: desc,
				Color:       warningColor,
			}},
		})
	}
}
