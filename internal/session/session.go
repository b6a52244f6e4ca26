// Package session ties together everything that belongs to one guild: the
// event dispatcher, the playback service, radio mode, the voice output and
// the Jellyfin play-state reporter.
package session

import (
	"context"
	"fmt"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/jellyfin"
	"jellycord/internal/playback"
	"jellycord/internal/radio"
	"jellycord/internal/voice"

	"github.com/sirupsen/logrus"
)

// Store persists guild settings.
type Store interface {
	Volume(guildID string) (int, bool, error)
	SetVolume(guildID string, percent int) error
	Radio(guildID string) (bool, error)
	SetRadio(guildID string, enabled bool) error
}

// Catalog supplies radio tracks and stream URLs.
type Catalog interface {
	radio.Source
	StreamURL(id string) string
}

// Link is the voice connection of a guild.
type Link interface {
	voice.SinkProvider
	Join(channelID string) error
	Leave() error
	ChannelID() string
}

// Reporter mirrors a session's playback somewhere.
type Reporter interface {
	Run(ctx context.Context, interval time.Duration) error
	Close()
}

// Session is the state of one guild.
type Session struct {
	GuildID  string
	Playback *playback.Service
	Radio    *radio.Mode

	output   *voice.Output
	link     Link
	reporter Reporter
	store    Store
	cancel   context.CancelFunc
	unsubs   []func()
	log      *logrus.Entry
}

func newSession(parent context.Context, guildID string, opts *Options) *Session {
	log := opts.Log.WithField("guild", guildID)
	ctx, cancel := context.WithCancel(parent)

	volume := playback.DefaultVolume
	if v, ok, err := opts.Store.Volume(guildID); err != nil {
		log.WithError(err).Warn("Failed to read saved volume")
	} else if ok {
		volume = v
	}
	radioOn, err := opts.Store.Radio(guildID)
	if err != nil {
		log.WithError(err).Warn("Failed to read saved radio mode")
	}

	svc := playback.NewService(events.NewDispatcher(),
		playback.WithVolume(volume),
		playback.WithLogger(log),
	)

	s := &Session{
		GuildID:  guildID,
		Playback: svc,
		Radio:    radio.New(ctx, svc, opts.Catalog, radio.WithEnabled(radioOn), radio.WithLogger(log)),
		link:     opts.Link(guildID),
		store:    opts.Store,
		cancel:   cancel,
		log:      log.WithField("component", "session"),
	}

	voiceOpts := []voice.Option{voice.WithLogger(log)}
	if opts.Encoder != nil {
		voiceOpts = append(voiceOpts, voice.WithEncoder(opts.Encoder))
	}
	s.output = voice.NewOutput(svc, opts.Catalog.StreamURL, opts.Source, s.link, voiceOpts...)

	if opts.Reporter != nil {
		s.reporter = opts.Reporter(svc, log)
	}

	s.unsubs = append(s.unsubs, svc.Subscribe(events.VoiceVolume, s.onVolume))
	return s
}

var _ jellyfin.PlaybackState = (*playback.Service)(nil)

func (s *Session) onVolume(e events.Event) {
	ev, ok := e.(events.VolumeChanged)
	if !ok {
		return
	}
	if err := s.store.SetVolume(s.GuildID, ev.Percent); err != nil {
		s.log.WithError(err).Warn("Failed to save volume")
	}
}

// Join connects to a voice channel and announces the active track again so
// the output picks it up.
func (s *Session) Join(channelID string) error {
	if err := s.link.Join(channelID); err != nil {
		return err
	}
	s.Playback.ActiveTrackAndEmitEvent()
	return nil
}

// ChannelID returns the voice channel the bot is in, or "".
func (s *Session) ChannelID() string {
	return s.link.ChannelID()
}

// Streaming reports whether audio is being sent.
func (s *Session) Streaming() bool {
	_, ok := s.output.Streaming()
	return ok
}

// ToggleRadio flips radio mode and saves the new state.
func (s *Session) ToggleRadio(ctx context.Context) (bool, error) {
	on, err := s.Radio.Toggle(ctx)
	if serr := s.store.SetRadio(s.GuildID, on); serr != nil {
		s.log.WithError(serr).Warn("Failed to save radio mode")
	}
	return on, err
}

// close stops playback and releases the voice connection.
func (s *Session) close() error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.Playback.Stop()
	s.output.Close()
	s.Radio.Close()
	if s.reporter != nil {
		s.reporter.Close()
	}
	s.cancel()

	if s.link.ChannelID() == "" {
		return nil
	}
	if err := s.link.Leave(); err != nil {
		return fmt.Errorf("failed to leave voice: %w", err)
	}
	return nil
}
