package command

import (
	"context"
	"strings"
	"time"

	"jellycord/internal/metrics"
	"jellycord/internal/storage"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// History records executed commands.
type History interface {
	AppendCommandToHistory(guildID string, entry storage.CommandHistory) error
}

// WithGuildOnly refuses interactions from direct messages.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, _, ok := interactionOf(inv.Data)
			if ok && e.GuildID == "" {
				return RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
					Description: "This command only works in a server.",
				})
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger logs every run, counts it and stores it in the guild's
// command history.
func WithCommandLogger(history History) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			_, e, log, ok := interactionOf(inv.Data)
			if !ok {
				return err
			}

			source := "slash"
			if _, isComponent := inv.Data.(*ComponentContext); isComponent {
				source = "component"
			}
			metrics.Command(source, c.Name())

			user := InteractionUser(e)
			entry := storage.CommandHistory{
				ChannelID: e.ChannelID,
				Command:   c.Name(),
				Param:     strings.Join(inv.Args, " "),
				Datetime:  start,
			}
			if user != nil {
				entry.UserID, entry.Username = user.ID, user.Username
			}

			fields := logrus.Fields{"command": c.Name(), "user": entry.Username, "took": time.Since(start)}
			if err != nil {
				log.WithFields(fields).WithError(err).Error("Command failed")
			} else {
				log.WithFields(fields).Debug("Command handled")
			}

			if e.GuildID != "" && history != nil {
				if herr := history.AppendCommandToHistory(e.GuildID, entry); herr != nil {
					log.WithError(herr).Warn("Failed to store command history")
				}
			}
			return err
		})
	}
}
