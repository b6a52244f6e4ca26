package music

import (
	"fmt"
	"strings"

	"jellycord/internal/command"
	"jellycord/internal/playlist"

	"github.com/bwmarrin/discordgo"
)

type PlaylistCommand struct {
	Player *Player
}

func (c *PlaylistCommand) Name() string        { return "playlist" }
func (c *PlaylistCommand) Description() string { return "Show the playlist" }
func (c *PlaylistCommand) Group() string       { return group }
func (c *PlaylistCommand) Category() string    { return "📜 Queue" }

func (c *PlaylistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *PlaylistCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event
	guildID := e.GuildID

	if _, ok := c.Player.Sessions.Get(guildID); !ok {
		return command.RespondEmbedEphemeral(s, e, notice("📜 Playlist", "The playlist is empty."))
	}

	source := func() (playlist.Snapshot, bool, bool) {
		sess, ok := c.Player.Sessions.Get(guildID)
		if !ok {
			return playlist.Snapshot{}, false, false
		}
		return sess.Playback.Playlist(), sess.Playback.IsPaused(), true
	}
	edit := func(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
		return command.EditEmbed(s, e, embed, components...)
	}

	id, embed, components, err := c.Player.Views.Open(source, edit)
	if err != nil {
		return fmt.Errorf("open playlist view: %w", err)
	}
	if err := command.RespondEmbed(s, e, embed, components...); err != nil {
		c.Player.Views.Close(id)
		return err
	}
	return nil
}

// Component turns the pages of an open view.
func (c *PlaylistCommand) Component(cc *command.ComponentContext) error {
	s, e := cc.Session, cc.Event

	action, id, ok := parseViewID(e.MessageComponentData().CustomID)
	if !ok {
		return fmt.Errorf("unexpected custom id %q", e.MessageComponentData().CustomID)
	}

	delta := 1
	if action == "prev" {
		delta = -1
	}

	embed, components, ok := c.Player.Views.Turn(id, delta)
	if !ok {
		return command.RespondUpdate(s, e,
			notice("📜 Playlist", "This view has expired. Use `/playlist` again."),
			[]discordgo.MessageComponent{})
	}
	return command.RespondUpdate(s, e, embed, components)
}

// parseViewID splits "playlist:<prev|next>:<view id>".
func parseViewID(customID string) (action, id string, ok bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != "playlist" || parts[2] == "" {
		return "", "", false
	}
	if parts[1] != "prev" && parts[1] != "next" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
