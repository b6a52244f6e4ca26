package music

import (
	"fmt"

	"jellycord/internal/command"
	"jellycord/internal/jellyfin"

	"github.com/bwmarrin/discordgo"
)

type PlayCommand struct {
	Player *Player
}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Search the library and queue the best match" }
func (c *PlayCommand) Group() string       { return group }
func (c *PlayCommand) Category() string    { return category }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Track, album, playlist or artist name",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "type",
				Description: "Only match this kind of item",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "track", Value: "track"},
					{Name: "album", Value: "album"},
					{Name: "playlist", Value: "playlist"},
					{Name: "artist", Value: "artist"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "next",
				Description: "Play right after the current track",
			},
		},
	}
}

func (c *PlayCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event
	opts := command.Options(e)

	var (
		query    string
		kind     jellyfin.ItemKind
		playNext bool
	)
	if o, ok := opts["query"]; ok {
		query = o.StringValue()
	}
	if o, ok := opts["type"]; ok {
		kind, _ = jellyfin.ParseKind(o.StringValue())
	}
	if o, ok := opts["next"]; ok {
		playNext = o.BoolValue()
	}

	if err := command.RespondDeferred(s, e, false); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	sess, err := c.Player.join(e.GuildID, userOf(e))
	if err != nil {
		_ = command.EditEmbed(s, e, voiceError(err))
		return err
	}

	item, tracks, err := c.Player.resolve(sc.Ctx, query, kind)
	if err != nil {
		_ = command.EditEmbed(s, e, command.ErrorEmbed("The library search failed."))
		return err
	}
	if item.ID == "" {
		return command.EditEmbed(s, e, notice("🔍 No match", fmt.Sprintf("Nothing in the library matches **%s**.", query)))
	}

	sess.Playback.EnqueueTracks(tracks, playNext)
	return command.EditEmbed(s, e, enqueuedEmbed(tracks, playNext, sess.Playback.Playlist()))
}

type RandomCommand struct {
	Player *Player
}

func (c *RandomCommand) Name() string        { return "random" }
func (c *RandomCommand) Description() string { return "Queue random tracks from the library" }
func (c *RandomCommand) Group() string       { return group }
func (c *RandomCommand) Category() string    { return category }

func (c *RandomCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minCount := 1.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: fmt.Sprintf("How many tracks (default %d)", defaultRandomCount),
				MinValue:    &minCount,
				MaxValue:    maxRandomCount,
			},
		},
	}
}

func (c *RandomCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event

	count := defaultRandomCount
	if o, ok := command.Options(e)["count"]; ok {
		count = min(max(int(o.IntValue()), 1), maxRandomCount)
	}

	if err := command.RespondDeferred(s, e, false); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	sess, err := c.Player.join(e.GuildID, userOf(e))
	if err != nil {
		_ = command.EditEmbed(s, e, voiceError(err))
		return err
	}

	tracks, err := c.Player.Catalog.RadioTracks(sc.Ctx, count)
	if err != nil {
		_ = command.EditEmbed(s, e, command.ErrorEmbed("Could not fetch random tracks."))
		return err
	}

	sess.Playback.EnqueueTracks(tracks, false)
	return command.EditEmbed(s, e, enqueuedEmbed(tracks, false, sess.Playback.Playlist()))
}
