// Package music holds the playback slash commands and the paged playlist
// view.
package music

import (
	"context"
	"errors"
	"fmt"

	"jellycord/internal/command"
	"jellycord/internal/jellyfin"
	"jellycord/internal/playlist"
	"jellycord/internal/session"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const (
	group    = "music"
	category = "🎵 Playback"

	defaultRandomCount = 10
	maxRandomCount     = 50
)

// ErrNotInVoice is returned by a VoiceLocator when the user is not in a
// voice channel of the guild.
var ErrNotInVoice = errors.New("user is not in a voice channel")

// Sessions gives commands access to guild sessions.
type Sessions interface {
	Get(guildID string) (*session.Session, bool)
	GetOrCreate(guildID string) *session.Session
	Close(guildID string) error
}

// Catalog finds and expands library items.
type Catalog interface {
	Search(ctx context.Context, query string, limit int, kinds ...jellyfin.ItemKind) ([]jellyfin.Item, error)
	Tracks(ctx context.Context, item jellyfin.Item) ([]jellyfin.Item, error)
	TracksOf(items []jellyfin.Item) []playlist.Track
	RadioTracks(ctx context.Context, n int) ([]playlist.Track, error)
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, error)
}

// Player is shared by all music commands.
type Player struct {
	Sessions Sessions
	Catalog  Catalog
	Voice    VoiceLocator
	Views    *Views
}

// Register adds every music command to reg.
func Register(reg *cmd.Registry, p *Player, mws ...cmd.Middleware) {
	for _, c := range []command.DiscordCommand{
		&PlayCommand{p},
		&RandomCommand{p},
		&NextCommand{p},
		&PreviousCommand{p},
		&PauseCommand{p},
		&StopCommand{p},
		&ShuffleCommand{p},
		&VolumeCommand{p},
		&RadioCommand{p},
		&PlaylistCommand{p},
		&SummonCommand{p},
		&DisconnectCommand{p},
	} {
		command.Register(reg, c, mws...)
	}
}

func slashContext(ctx any) (*command.SlashContext, error) {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil, command.ErrWrongContext
	}
	return sc, nil
}

// resolve searches the catalog and expands the best match into tracks.
func (p *Player) resolve(ctx context.Context, query string, kind jellyfin.ItemKind) (jellyfin.Item, []playlist.Track, error) {
	var kinds []jellyfin.ItemKind
	if kind != "" {
		kinds = append(kinds, kind)
	}
	found, err := p.Catalog.Search(ctx, query, 1, kinds...)
	if err != nil {
		return jellyfin.Item{}, nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(found) == 0 {
		return jellyfin.Item{}, nil, nil
	}

	items, err := p.Catalog.Tracks(ctx, found[0])
	if err != nil {
		return found[0], nil, err
	}
	return found[0], p.Catalog.TracksOf(items), nil
}

// join connects the guild session to the caller's voice channel unless it
// is already there.
func (p *Player) join(guildID, userID string) (*session.Session, error) {
	channelID, err := p.Voice.UserVoiceChannel(guildID, userID)
	if err != nil {
		return nil, err
	}
	s := p.Sessions.GetOrCreate(guildID)
	if s.ChannelID() == channelID {
		return s, nil
	}
	if err := s.Join(channelID); err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	return s, nil
}

// userOf is the member or DM user behind an interaction.
func userOf(e *discordgo.InteractionCreate) string {
	if u := command.InteractionUser(e); u != nil {
		return u.ID
	}
	return ""
}

// withSession answers "nothing is playing" for guilds without a session.
func (p *Player) withSession(sc *command.SlashContext, fn func(s *session.Session) *discordgo.MessageEmbed) error {
	s, ok := p.Sessions.Get(sc.Event.GuildID)
	if !ok {
		return command.RespondEmbedEphemeral(sc.Session, sc.Event, notice("🔇 Nothing is playing", "Use `/play` to start."))
	}
	return command.RespondEmbed(sc.Session, sc.Event, fn(s))
}

func voiceError(err error) *discordgo.MessageEmbed {
	if errors.Is(err, ErrNotInVoice) {
		return notice("🔇 Join a voice channel", "You need to be in a voice channel first.")
	}
	return command.ErrorEmbed("Could not join your voice channel.")
}
