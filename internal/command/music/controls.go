package music

import (
	"fmt"

	"jellycord/internal/command"
	"jellycord/internal/playback"
	"jellycord/internal/session"

	"github.com/bwmarrin/discordgo"
)

type NextCommand struct {
	Player *Player
}

func (c *NextCommand) Name() string        { return "next" }
func (c *NextCommand) Description() string { return "Skip to the next track" }
func (c *NextCommand) Group() string       { return group }
func (c *NextCommand) Category() string    { return category }

func (c *NextCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *NextCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	return c.Player.withSession(sc, func(s *session.Session) *discordgo.MessageEmbed {
		if !s.Playback.NextTrack() {
			return notice("⏭️ No next track", "This is the last track in the playlist.")
		}
		t, _ := s.Playback.ActiveTrack()
		return trackEmbed("⏭️ Skipped", t)
	})
}

type PreviousCommand struct {
	Player *Player
}

func (c *PreviousCommand) Name() string        { return "previous" }
func (c *PreviousCommand) Description() string { return "Go back to the previous track" }
func (c *PreviousCommand) Group() string       { return group }
func (c *PreviousCommand) Category() string    { return category }

func (c *PreviousCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *PreviousCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	return c.Player.withSession(sc, func(s *session.Session) *discordgo.MessageEmbed {
		if !s.Playback.PreviousTrack() {
			return notice("⏮️ No previous track", "This is the first track in the playlist.")
		}
		t, _ := s.Playback.ActiveTrack()
		return trackEmbed("⏮️ Back", t)
	})
}

type PauseCommand struct {
	Player *Player
}

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "Pause or resume playback" }
func (c *PauseCommand) Group() string       { return group }
func (c *PauseCommand) Category() string    { return category }

func (c *PauseCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *PauseCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	return c.Player.withSession(sc, func(s *session.Session) *discordgo.MessageEmbed {
		paused, ok := s.Playback.TogglePause()
		switch {
		case !ok:
			return notice("🔇 Nothing is playing", "There is no track to pause.")
		case paused:
			return notice("⏸️ Paused", "Use `/pause` again to resume.")
		}
		t, _ := s.Playback.ActiveTrack()
		return trackEmbed("▶️ Resumed", t)
	})
}

type StopCommand struct {
	Player *Player
}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playback and clear the playlist" }
func (c *StopCommand) Group() string       { return group }
func (c *StopCommand) Category() string    { return category }

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *StopCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	return c.Player.withSession(sc, func(s *session.Session) *discordgo.MessageEmbed {
		s.Playback.Stop()
		return notice("⏹️ Stopped", "The playlist was cleared.")
	})
}

type ShuffleCommand struct {
	Player *Player
}

func (c *ShuffleCommand) Name() string        { return "shuffle" }
func (c *ShuffleCommand) Description() string { return "Shuffle the playlist" }
func (c *ShuffleCommand) Group() string       { return group }
func (c *ShuffleCommand) Category() string    { return "📜 Queue" }

func (c *ShuffleCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *ShuffleCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	return c.Player.withSession(sc, func(s *session.Session) *discordgo.MessageEmbed {
		if len(s.Playback.Playlist().Tracks) < 2 {
			return notice("🔀 Nothing to shuffle", "Queue a few more tracks first.")
		}
		s.Playback.Shuffle()
		return notice("🔀 Shuffled", "The playing track stays where it is.")
	})
}

type VolumeCommand struct {
	Player *Player
}

func (c *VolumeCommand) Name() string        { return "volume" }
func (c *VolumeCommand) Description() string { return "Show or set the playback volume" }
func (c *VolumeCommand) Group() string       { return group }
func (c *VolumeCommand) Category() string    { return "🔊 Voice" }

func (c *VolumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := 0.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "percent",
				Description: fmt.Sprintf("0 to %d", playback.MaxVolume),
				MinValue:    &minVolume,
				MaxValue:    playback.MaxVolume,
			},
		},
	}
}

func (c *VolumeCommand) Run(ctx any) error {
	sc, err := slashContext(ctx)
	if err != nil {
		return err
	}
	s, e := sc.Session, sc.Event

	o, set := command.Options(e)["percent"]
	sess := c.Player.Sessions.GetOrCreate(e.GuildID)
	if !set {
		return command.RespondEmbed(s, e, notice("🔊 Volume", fmt.Sprintf("Volume is **%d%%**.", sess.Playback.Volume())))
	}
	v := sess.Playback.SetVolume(int(o.IntValue()))
	return command.RespondEmbed(s, e, notice("🔊 Volume", fmt.Sprintf("Volume set to **%d%%**.", v)))
}

type RadioCommand struct {
	Player *Player
}

func (c *RadioCommand) Name() string        { return "radio" }
func (c *RadioCommand) Description() string { return "Toggle endless random playback" }
func (c *RadioCommand) Group() string       { return group }
func (c *RadioCommand) Category() string    { return "📻 Radio" }

func (c *RadioCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *RadioCommand) Run(ctx any) error {
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

	on, err := sess.ToggleRadio(sc.Ctx)
	if err != nil {
		_ = command.EditEmbed(s, e, command.ErrorEmbed("Radio is on but the first track could not be fetched."))
		return err
	}
	if !on {
		return command.EditEmbed(s, e, notice("📻 Radio off", "The playlist stops after the last track."))
	}
	t, ok := sess.Playback.ActiveTrack()
	if !ok {
		return command.EditEmbed(s, e, notice("📻 Radio on", "Random tracks will keep the music going."))
	}
	return command.EditEmbed(s, e, trackEmbed("📻 Radio on", t))
}
