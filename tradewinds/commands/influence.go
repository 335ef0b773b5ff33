package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
	"github.com/guildworks/tradewinds/tradewinds/economy"
)

var Influence = discord.SlashCommandCreate{
	Name:        "influence",
	Description: "📣 Spend your coins to sway the guild economy",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "action",
			Description: "Which intervention to fund",
			Required:    true,
			Choices:     influenceChoices(),
		},
	},
}

func influenceChoices() []discord.ApplicationCommandOptionChoiceString {
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(economy.InfluenceActions))
	for _, a := range economy.InfluenceActions {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{
			Name:  fmt.Sprintf("%s (%s coins)", a.Label, formatCoins(a.Cost)),
			Value: a.Name,
		})
	}
	return choices
}

func InfluenceHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		action := e.SlashCommandInteractionData().String("action")

		res, err := b.Engine.Influence(ctx, e.GuildID().String(), e.User().ID.String(), action)
		if err != nil {
			return replyEconomyError(e, err)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       fmt.Sprintf("📣 %s", res.Action.Label),
				Description: res.Action.Description,
				Color:       successColor,
				Fields: []discord.EmbedField{
					{Name: "Cost", Value: fmt.Sprintf("%s coins", formatCoins(res.Action.Cost)), Inline: boolPtr(true)},
					{Name: "Effect", Value: influenceEffect(res.Action), Inline: boolPtr(true)},
					{Name: "Expires", Value: fmt.Sprintf("<t:%d:R>", res.ExpiresAt.Unix()), Inline: boolPtr(true)},
					{Name: "Your Balance", Value: fmt.Sprintf("%s coins", formatCoins(res.NewBalance)), Inline: boolPtr(true)},
				},
			}},
		})
	}
}

func influenceEffect(a economy.InfluenceAction) string {
	switch a.Kind {
	case economy.ModIncomeMultiplier:
		return fmt.Sprintf("Income ×%.2f", a.Value)
	case economy.ModCostReduction:
		return fmt.Sprintf("Costs reduced by %.0f%%", a.Value*100)
	case economy.ModTaxRate:
		return fmt.Sprintf("Tax rate %+.0f%%", a.Value*100)
	case economy.ModTransferFee:
		return fmt.Sprintf("Transfer fee %+.0f%%", a.Value*100)
	}
	return a.Description
}
