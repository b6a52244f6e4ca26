package music

import (
	"errors"
	"fmt"

	"jellycord/internal/command"
	"jellycord/internal/session"

	"github.com/bwmarrin/discordgo"
)

type SummonCommand struct {
	Player *Player
}

func (c *SummonCommand) Name() string        { return "summon" }
func (c *SummonCommand) Description() string { return "Bring the bot into your voice channel" }
func (c *SummonCommand) Group() string       { return group }
func (c *SummonCommand) Category() string    { return "🔊 Voice" }

func (c *SummonCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *SummonCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event

	if err := command.RespondDeferred(s, e, false); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}
	sess, err := c.Player.join(e.GuildID, userOf(e))
	if err != nil {
		_ = command.EditEmbed(s, e, voiceError(err))
		return err
	}
	return command.EditEmbed(s, e, notice("🔊 Joined", fmt.Sprintf("Connected to <#%s>.", sess.ChannelID())))
}

type DisconnectCommand struct {
	Player *Player
}

func (c *DisconnectCommand) Name() string        { return "disconnect" }
func (c *DisconnectCommand) Description() string { return "Stop playback and leave the voice channel" }
func (c *DisconnectCommand) Group() string       { return group }
func (c *DisconnectCommand) Category() string    { return "🔊 Voice" }

func (c *DisconnectCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *DisconnectCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event

	err = c.Player.Sessions.Close(e.GuildID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return command.RespondEmbedEphemeral(s, e, notice("🔇 Not connected", "The bot is not in a voice channel."))
	case err != nil:
		_ = command.RespondEmbedEphemeral(s, e, command.ErrorEmbed("Could not leave the voice channel cleanly."))
		return err
	}
	return command.RespondEmbed(s, e, notice("👋 Disconnected", "Playback stopped and the playlist was cleared."))
}
