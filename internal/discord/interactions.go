package discord

import (
	"context"
	"strings"

	"jellycord/internal/command"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// route finds the command for an interaction. Slash commands match by name;
// components match the command named before the first ':' of the custom id.
func route(reg *cmd.Registry, i *discordgo.InteractionCreate) (cmd.Command, bool) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return reg.Get(i.ApplicationCommandData().Name)
	case discordgo.InteractionMessageComponent:
		name, _, _ := strings.Cut(i.MessageComponentData().CustomID, ":")
		c, ok := reg.Get(name)
		if !ok || !command.HandlesComponents(c) {
			return nil, false
		}
		return c, true
	}
	return nil, false
}

// invocation wraps an interaction in the context its command expects.
func invocation(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, log *logrus.Entry) *cmd.Invocation {
	inv := &cmd.Invocation{Args: command.Args(i)}
	log = log.WithField("guild", i.GuildID)
	if i.Type == discordgo.InteractionMessageComponent {
		inv.Data = &command.ComponentContext{Ctx: ctx, Session: s, Event: i, Log: log}
	} else {
		inv.Data = &command.SlashContext{Ctx: ctx, Session: s, Event: i, Log: log}
	}
	return inv
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	c, ok := route(b.registry, i)
	if !ok {
		b.log.WithField("type", i.Type.String()).Warn("No command for interaction")
		return
	}

	ctx := b.context()
	if err := c.Run(ctx, invocation(ctx, s, i, b.log)); err != nil {
		b.log.WithError(err).WithField("command", c.Name()).Debug("Interaction ended with error")
	}
}
