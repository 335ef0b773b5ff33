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

var Treasury = discord.SlashCommandCreate{
	Name:        "treasury",
	Description: "🏦 View the guild treasury and its current state",
}

func TreasuryHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := b.Engine.Snapshot(ctx, e.GuildID().String())
		if err != nil {
			return replyEconomyError(e, err)
		}

		statusEff := snap.Status.Effect()
		policyEff := snap.Policy.Effect()
		drift := statusEff.TreasuryPerHour + policyEff.TreasuryPerHour
		if drift >= 0 {
			drift *= snap.Rates.IncomeMultiplier
		} else {
			drift *= 1 - snap.Rates.CostReduction
		}

		fields := []discord.EmbedField{
			{
				Name:  "Status",
				Value: fmt.Sprintf("**%s**\n%s", snap.Status, statusEff.Description),
			},
			{
				Name:  "Trade Policy",
				Value: fmt.Sprintf("**%s**\n%s", snap.Policy, policyEff.Description),
			},
			{
				Name: "Rates",
				Value: fmt.Sprintf("Drift: %s/h\nIncome ×%.2f · Tax %.0f%% · Transfer fee %.0f%%",
					signCoins(int64(drift)),
					snap.Rates.IncomeMultiplier,
					snap.Rates.TaxRate*100,
					snap.Rates.TransferFee*100),
			},
		}

		if len(snap.Modifiers) > 0 {
			var lines []string
			for _, m := range snap.Modifiers {
				line := fmt.Sprintf("`%s` %+.2f", m.Kind, m.Value)
				if m.Description != "" {
					line += " · " + m.Description
				}
				if m.ExpiresAt != nil {
					line += fmt.Sprintf(" (expires <t:%d:R>)", m.ExpiresAt.Unix())
				}
				lines = append(lines, line)
			}
			fields = append(fields, discord.EmbedField{
				Name:  "Active Modifiers",
				Value: strings.Join(lines, "\n"),
			})
		}

		footer := fmt.Sprintf("Last tick: %s ago", time.Since(snap.LastTick).Round(time.Minute))
		if !snap.NextEvent.IsZero() {
			footer += fmt.Sprintf(" · Next event window: %s", time.Until(snap.NextEvent).Round(time.Minute))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "🏦 Guild Treasury",
				Description: fmt.Sprintf("```\n%s coins\n```", formatTreasury(snap.Treasury)),
				Color:       infoColor,
				Fields:      fields,
				Footer:      &discord.EmbedFooter{Text: footer},
			}},
		})
	}
}
