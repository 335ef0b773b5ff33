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

var Forecast = discord.SlashCommandCreate{
	Name:        "forecast",
	Description: "🔮 Project the treasury forward at current drift",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "hours",
			Description: "How many hours to project (default 12)",
			MinValue:    intPtr(1),
			MaxValue:    intPtr(48),
		},
	},
}

func ForecastHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		hours := 12
		if v, ok := e.SlashCommandInteractionData().OptInt("hours"); ok {
			hours = v
		}

		points, err := b.Engine.Forecast(ctx, e.GuildID().String(), hours)
		if err != nil {
			return replyEconomyError(e, err)
		}

		var sb strings.Builder
		lastStatus := ""
		for i, p := range points {
			line := fmt.Sprintf("`+%2dh` **%s**", i+1, formatTreasury(p.Value))
			if string(p.Status) != lastStatus {
				line += fmt.Sprintf(" → %s", p.Status)
				lastStatus = string(p.Status)
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       fmt.Sprintf("🔮 %d-Hour Forecast", hours),
				Description: sb.String(),
				Color:       infoColor,
				Footer:      &discord.EmbedFooter{Text: "Projection only. Events and member activity are not simulated."},
			}},
		})
	}
}
