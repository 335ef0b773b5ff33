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

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "🏆 Richest wallets in the guild",
}

const leaderboardPerPage = 10
const leaderboardLimit = 100

func LeaderboardHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		wallets, err := b.Engine.Leaderboard(ctx, e.GuildID().String(), leaderboardLimit)
		if err != nil {
			return replyEconomyError(e, err)
		}
		if len(wallets) == 0 {
			return errorEmbed(e, "No wallets here yet. `/work` starts one.")
		}

		totalPages := (len(wallets) + leaderboardPerPage - 1) / leaderboardPerPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * leaderboardPerPage
				end := min(start+leaderboardPerPage, len(wallets))

				var sb strings.Builder
				for i := start; i < end; i++ {
					w := wallets[i]
					medal := fmt.Sprintf("`#%d`", i+1)
					switch i {
					case 0:
						medal = "🥇"
					case 1:
						medal = "🥈"
					case 2:
						medal = "🥉"
					}
					sb.WriteString(fmt.Sprintf("%s <@%s> · **%s** coins\n", medal, w.UserID, formatCoins(w.Balance)))
				}

				embed.SetTitle("🏆 Wealth Leaderboard").
					SetDescription(sb.String()).
					SetColor(warningColor).
					SetFooterText(fmt.Sprintf("Page %d/%d", page+1, totalPages))
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
