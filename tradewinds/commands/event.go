package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
	"github.com/guildworks/tradewinds/tradewinds/database/models"
)

var Event = discord.SlashCommandCreate{
	Name:        "event",
	Description: "⚡ Economic events: view, vote, trigger",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "info",
			Description: "Show the active event, or look one up by code",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "code",
					Description: "Event code (default: the active event)",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "vote",
			Description: "Vote on the active event's outcome",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "code",
					Description: "Event code",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "option",
					Description: "Option number, starting at 1",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "trigger",
			Description: "Force an event to fire now (managers only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "kind",
					Description: "Event category",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Positive", Value: string(models.EventKindPositive)},
						{Name: "Negative", Value: string(models.EventKindNegative)},
						{Name: "Neutral (vote)", Value: string(models.EventKindNeutral)},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "recent",
			Description: "List recently resolved events",
		},
	},
}

func EventInfoHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		guildID := e.GuildID().String()
		var ev *models.EconomicEvent

		if code, ok := e.SlashCommandInteractionData().OptString("code"); ok {
			found, err := b.Events.Get(ctx, guildID, strings.ToUpper(strings.TrimSpace(code)))
			if err != nil {
				return replyEconomyError(e, err)
			}
			ev = found
		} else {
			active, err := b.Events.Active(ctx, guildID)
			if err != nil {
				return replyEconomyError(e, err)
			}
			if len(active) == 0 {
				next, err := b.Events.NextEventAt(ctx, guildID)
				if err != nil {
					return replyEconomyError(e, err)
				}
				desc := "No event is active right now."
				if !next.IsZero() {
					desc += fmt.Sprintf(" The next one can fire <t:%d:R>.", next.Unix())
				}
				return e.CreateMessage(discord.MessageCreate{
					Embeds: []discord.Embed{{Title: "⚡ Economic Events", Description: desc, Color: infoColor}},
				})
			}
			ev = active[0]
		}
		if ev == nil {
			return errorEmbed(e, "No event found under that code.")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{eventEmbed(ev)},
		})
	}
}

func EventVoteHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		code := strings.ToUpper(strings.TrimSpace(data.String("code")))
		option := data.Int("option") - 1

		ev, err := b.Events.Vote(ctx, e.GuildID().String(), code, e.User().ID.String(), option, isManager(e))
		if err != nil {
			return replyEconomyError(e, err)
		}

		if ev.Status.Terminal() {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{eventEmbed(ev)},
			})
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "🗳️ Vote Recorded",
				Description: fmt.Sprintf("You voted **%s** on `%s`.\nVoting closes <t:%d:R>.",
					ev.Options[option].Label, ev.Code, ev.ExpiresAt.Unix()),
				Color: successColor,
			}},
		})
	}
}

func EventTriggerHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !isManager(e) {
			return errorEmbed(e, "Triggering events requires the Manage Server permission.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		kind := models.EventKind(e.SlashCommandInteractionData().String("kind"))

		ev, err := b.Events.Trigger(ctx, e.GuildID().String(), kind)
		if err != nil {
			return replyEconomyError(e, err)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{eventEmbed(ev)},
		})
	}
}

func EventRecentHandler(b *tradewinds.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		events, err := b.Events.Recent(ctx, e.GuildID().String(), 10)
		if err != nil {
			return replyEconomyError(e, err)
		}
		if len(events) == 0 {
			return errorEmbed(e, "No events have happened here yet.")
		}

		var sb strings.Builder
		for _, ev := range events {
			line := fmt.Sprintf("`%s` %s **%s**", ev.Code, kindEmoji(ev.Kind), ev.Name)
			if ev.Status == models.EventStatusActive {
				line += " · voting open"
			} else if ev.TreasuryImpact != 0 {
				line += fmt.Sprintf(" · %s", signCoins(ev.TreasuryImpact))
			}
			line += fmt.Sprintf(" · <t:%d:R>", ev.CreatedAt.Unix())
			sb.WriteString(line)
			sb.WriteByte('\n')
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "⚡ Recent Events",
				Description: sb.String(),
				Color:       infoColor,
			}},
		})
	}
}

func eventEmbed(ev *models.EconomicEvent) discord.Embed {
	color := infoColor
	switch ev.Kind {
	case models.EventKindPositive:
		color = successColor
	case models.EventKindNegative:
		color = errorColor
	}

	desc := ev.Description
	fields := []discord.EmbedField{}

	switch {
	case ev.Status == models.EventStatusActive:
		var sb strings.Builder
		for i, opt := range ev.Options {
			sb.WriteString(fmt.Sprintf("**%d.** %s", i+1, opt.Label))
			if opt.TreasuryImpact != 0 {
				sb.WriteString(fmt.Sprintf(" (%s)", signCoins(opt.TreasuryImpact)))
			}
			sb.WriteByte('\n')
		}
		fields = append(fields,
			discord.EmbedField{Name: "Options", Value: sb.String()},
			discord.EmbedField{Name: "Voting Closes", Value: fmt.Sprintf("<t:%d:R>", ev.ExpiresAt.Unix())},
		)
		desc += fmt.Sprintf("\n\nVote with `/event vote code:%s`", ev.Code)

	case ev.ResolvedOption >= 0 && ev.ResolvedOption < len(ev.Options):
		opt := ev.Options[ev.ResolvedOption]
		fields = append(fields, discord.EmbedField{
			Name:  "Outcome",
			Value: fmt.Sprintf("%s (%s)", opt.Label, signCoins(opt.TreasuryImpact)),
		})

	case ev.TreasuryImpact != 0:
		fields = append(fields, discord.EmbedField{
			Name:  "Treasury Impact",
			Value: signCoins(ev.TreasuryImpact),
		})
	}

	return discord.Embed{
		Title:       fmt.Sprintf("%s %s", kindEmoji(ev.Kind), ev.Name),
		Description: desc,
		Color:       color,
		Fields:      fields,
		Footer:      &discord.EmbedFooter{Text: fmt.Sprintf("Event %s · %s", ev.Code, ev.Status)},
	}
}

func kindEmoji(kind models.EventKind) string {
	switch kind {
	case models.EventKindPositive:
		return "📈"
	case models.EventKindNegative:
		return "📉"
	default:
		return "⚖️"
	}
}

func isManager(e *handler.CommandEvent) bool {
	m := e.Member()
	return m != nil && m.Permissions.Has(discord.PermissionManageGuild)
}
