package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/guildworks/tradewinds/tradewinds"
)

var History = discord.SlashCommandCreate{
	Name:        "history",
	Description: "📈 Browse the treasury's recent movement",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "hours",
			Description: "How far back to look (default 24)",
			MinValue:    intPtr(1),
			MaxValue:    intPtr(168),
		},
	},
}

const historyPerPage = 10

func HistoryHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		hours := 24
		if v, ok := e.SlashCommandInteractionData().OptInt("hours"); ok {
			hours = v
		}

		points, err := b.Engine.History(ctx, e.GuildID().String(), time.Duration(hours)*time.Hour)
		if err != nil {
			return replyEconomyError(e, err)
		}
		if len(points) == 0 {
			return errorEmbed(e, fmt.Sprintf("No treasury activity recorded in the last %d hours.", hours))
		}

		totalPages := (len(points) + historyPerPage - 1) / historyPerPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * historyPerPage
				end := min(start+historyPerPage, len(points))

				var sb strings.Builder
				for i := start; i < end; i++ {
					p := points[i]
					line := fmt.Sprintf("<t:%d:t> · **%s**", p.Timestamp.Unix(), formatTreasury(p.Value))
					if i > 0 {
						delta := p.Value.Sub(points[i-1].Value)
						line += fmt.Sprintf(" (%s)", signCoins(delta.IntPart()))
					}
					sb.WriteString(line)
					sb.WriteByte('\n')
				}

				embed.SetTitle(fmt.Sprintf("📈 Treasury History (last %dh)", hours)).
					SetDescription(sb.String()).
					SetColor(infoColor).
					SetFooterText(fmt.Sprintf("Page %d/%d · %d points", page+1, totalPages, len(points)))
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func intPtr(v int) *int {
	return &v
}
