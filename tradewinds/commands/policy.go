package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

var Policy = discord.SlashCommandCreate{
	Name:        "policy",
	Description: "⚖️ View or change the guild's trade policy",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "view",
			Description: "List all trade policies and their effects",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set",
			Description: "Switch to a different trade policy",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Policy name (partial names are matched)",
					Required:    true,
				},
			},
		},
	},
}

func PolicyViewHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := b.Engine.Snapshot(ctx, e.GuildID().String())
		if err != nil {
			return replyEconomyError(e, err)
		}

		var sb strings.Builder
		for _, p := range economy.PolicyOrder {
			eff := p.Effect()
			marker := "•"
			if p == snap.Policy {
				marker = "▶"
			}
			cost := economy.TransitionCost(snap.Policy, p)
			line := fmt.Sprintf("%s **%s** · %s/h · stability %+d · growth %+d",
				marker, p, signCoins(int64(eff.TreasuryPerHour)), eff.StabilityBonus, eff.GrowthModifier)
			if cost > 0 {
				line += fmt.Sprintf(" · switch: %s", formatCoins(cost))
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "⚖️ Trade Policies",
				Description: sb.String(),
				Color:       infoColor,
				Footer:      &discord.EmbedFooter{Text: "Switch costs scale with distance and are paid from the treasury."},
			}},
		})
	}
}

func PolicySetHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		input := strings.TrimSpace(e.SlashCommandInteractionData().String("name"))

		policy, cost, err := b.Engine.SetTradePolicy(ctx, e.GuildID().String(), input)
		if err != nil {
			return replyEconomyError(e, err)
		}

		desc := fmt.Sprintf("Trade policy is now **%s**.\n%s", policy, policy.Effect().Description)
		if cost > 0 {
			desc += fmt.Sprintf("\n\nTransition cost: **%s** coins from the treasury.", formatCoins(cost))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "⚖️ Policy Changed",
				Description: desc,
				Color:       successColor,
			}},
		})
	}
}
