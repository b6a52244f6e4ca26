// Package radio keeps a session playing random library tracks. While enabled,
// every time playback runs off the end of the playlist one more random track
// is fetched and queued.
package radio

import (
	"context"
	"errors"
	"sync"

	"jellycord/internal/events"
	"jellycord/internal/metrics"
	"jellycord/internal/playlist"

	"github.com/sirupsen/logrus"
)

// ErrNothingFetched is returned when the source had no track to offer.
var ErrNothingFetched = errors.New("radio: no random track available")

// Source hands out random tracks.
type Source interface {
	RadioTracks(ctx context.Context, n int) ([]playlist.Track, error)
}

// Playback is the part of the playback service radio mode drives.
type Playback interface {
	Subscribe(topic events.Topic, h events.Handler) (unsubscribe func())
	Clear()
	EnqueueTracks(tracks []playlist.Track, playNext bool) int
}

// Option configures a Mode.
type Option func(*Mode)

// WithEnabled starts the mode enabled without touching the playlist. Used to
// restore a persisted setting.
func WithEnabled(on bool) Option {
	return func(m *Mode) { m.enabled = on }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Mode) { m.log = log }
}

// Mode is the radio switch of one session.
type Mode struct {
	mu      sync.Mutex
	enabled bool

	ctx      context.Context
	playback Playback
	source   Source
	log      *logrus.Entry
	unsub    func()
	wg       sync.WaitGroup
}

// New attaches radio mode to a session. Background refills stop when ctx is
// done.
func New(ctx context.Context, playback Playback, source Source, opts ...Option) *Mode {
	m := &Mode{
		ctx:      ctx,
		playback: playback,
		source:   source,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "radio")
	m.unsub = playback.Subscribe(events.TrackNoNextTrack, m.onNoNextTrack)
	return m
}

// Enabled reports whether radio mode is on.
func (m *Mode) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Toggle flips radio mode and returns the new state. Turning it on clears
// the playlist and primes it with one random track; a failed prime leaves
// the mode on and is returned so the caller can tell the user.
func (m *Mode) Toggle(ctx context.Context) (bool, error) {
	m.mu.Lock()
	m.enabled = !m.enabled
	on := m.enabled
	m.mu.Unlock()

	m.log.WithField("enabled", on).Info("Radio toggled")
	if !on {
		return false, nil
	}

	m.playback.Clear()
	return true, m.refill(ctx)
}

// Close detaches the mode and waits for running refills.
func (m *Mode) Close() {
	m.unsub()
	m.wg.Wait()
}

func (m *Mode) onNoNextTrack(events.Event) {
	if !m.Enabled() {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.refill(m.ctx); err != nil {
			m.log.WithError(err).Warn("Radio refill failed, waiting for the next end of playlist")
		}
	}()
}

// refill fetches exactly one random track and queues it.
func (m *Mode) refill(ctx context.Context) error {
	tracks, err := m.source.RadioTracks(ctx, 1)
	if err == nil && len(tracks) == 0 {
		err = ErrNothingFetched
	}
	metrics.RadioRefill(err == nil)
	if err != nil {
		return err
	}

	// the user may have switched radio off while the fetch was running
	if !m.Enabled() {
		m.log.Debug("Radio disabled during refill, dropping track")
		return nil
	}

	m.playback.EnqueueTracks(tracks[:1], false)
	m.log.WithField("track", tracks[0].Name).Debug("Radio queued a track")
	return nil
}
