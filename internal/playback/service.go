// Package playback owns the playlist of one session and is the only way other
// components mutate it. Every mutation runs under the service lock; the events
// it produces are delivered after the lock is released, in the order they
// were emitted.
package playback

import (
	"sync"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/playlist"

	"github.com/sirupsen/logrus"
)

const (
	DefaultVolume = 100
	MaxVolume     = 150
)

// Service is the playback orchestrator of a session.
type Service struct {
	mu       sync.Mutex
	playlist *playlist.Playlist
	volume   int
	paused   bool
	pending  []events.Event

	dispatchMu sync.Mutex
	dispatcher *events.Dispatcher
	log        *logrus.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithVolume sets the initial volume.
func WithVolume(percent int) Option {
	return func(s *Service) { s.volume = clampVolume(percent) }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a service publishing to d.
func NewService(d *events.Dispatcher, opts ...Option) *Service {
	s := &Service{
		volume:     DefaultVolume,
		dispatcher: d,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "playback")
	return s
}

// Subscribe registers a handler on the session dispatcher.
func (s *Service) Subscribe(topic events.Topic, h events.Handler) (unsubscribe func()) {
	return s.dispatcher.Subscribe(topic, h)
}

// Playlist returns a copy of the current playlist, creating it if needed.
func (s *Service) Playlist() playlist.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistOrDefault().Snapshot()
}

// EnqueueTrack queues one track and returns the new playlist length.
func (s *Service) EnqueueTrack(track playlist.Track, playNext bool) int {
	return s.EnqueueTracks([]playlist.Track{track}, playNext)
}

// EnqueueTracks queues tracks and returns the new playlist length.
func (s *Service) EnqueueTracks(tracks []playlist.Track, playNext bool) int {
	var n int
	s.mutate(func(p *playlist.Playlist) {
		n = p.EnqueueTracks(tracks, playNext)
	})
	s.log.WithFields(logrus.Fields{"count": len(tracks), "next": playNext, "length": n}).Debug("Tracks enqueued")
	return n
}

// EnqueueBatch queues tracks like EnqueueTracks and also returns the entry
// number of the first queued track, so the caller can address that exact
// entry later even when ids repeat. first is zero when tracks is empty.
func (s *Service) EnqueueBatch(tracks []playlist.Track, playNext bool) (first uint64, length int) {
	s.mutate(func(p *playlist.Playlist) {
		length = p.EnqueueTracks(tracks, playNext)
		if len(tracks) > 0 {
			first = p.LastEntry() - uint64(len(tracks)) + 1
		}
	})
	s.log.WithFields(logrus.Fields{"count": len(tracks), "next": playNext, "length": length}).Debug("Tracks enqueued")
	return first, length
}

// NextTrack advances the playlist; false means there is no next track.
func (s *Service) NextTrack() bool {
	var ok bool
	s.mutate(func(p *playlist.Playlist) {
		ok = p.SetNextTrackAsActiveTrack()
	})
	return ok
}

// PreviousTrack rewinds the playlist; false means there is no previous track.
func (s *Service) PreviousTrack() bool {
	var ok bool
	s.mutate(func(p *playlist.Playlist) {
		ok = p.SetPreviousTrackAsActiveTrack()
	})
	return ok
}

// AdvanceAfterFinish is called when the voice output ran out of the entry it
// was streaming. Callbacks for entries that are no longer active are ignored.
// When nothing follows, the track is marked finished and no-next-track is
// published.
func (s *Service) AdvanceAfterFinish(entry uint64) bool {
	var advanced, stale bool
	s.mutate(func(p *playlist.Playlist) {
		active, ok := p.ActiveTrack()
		if !ok || active.Entry() != entry || !active.Playing {
			stale = true
			return
		}
		if advanced = p.SetNextTrackAsActiveTrack(); !advanced {
			p.MarkActiveTrackFinished()
			s.paused = false
			s.pending = append(s.pending, events.NoNextTrack{})
		}
	})
	if stale {
		s.log.WithField("entry", entry).Debug("Ignoring finish of an inactive entry")
	}
	return advanced
}

// HasActiveTrack reports whether a track is active.
func (s *Service) HasActiveTrack() bool {
	_, ok := s.ActiveTrack()
	return ok
}

// ActiveTrack returns a copy of the active track.
func (s *Service) ActiveTrack() (playlist.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistOrDefault().ActiveTrack()
}

// HasNextTrack reports whether a track follows the active one.
func (s *Service) HasNextTrack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistOrDefault().HasNextTrack()
}

// HasPreviousTrack reports whether a track precedes the active one.
func (s *Service) HasPreviousTrack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistOrDefault().HasPreviousTrack()
}

// SetActiveTrack activates the last queued entry with id without announcing
// it. Asking for an id that is not queued is a caller bug and returns
// playlist.ErrTrackNotInPlaylist.
func (s *Service) SetActiveTrack(id string) error {
	var err error
	s.mutate(func(p *playlist.Playlist) {
		err = p.SetActiveTrack(id)
	})
	return err
}

// SetActiveEntry activates the entry with the given number without
// announcing it.
func (s *Service) SetActiveEntry(entry uint64) error {
	var err error
	s.mutate(func(p *playlist.Playlist) {
		err = p.SetActiveEntry(entry)
	})
	return err
}

// ActiveTrackAndEmitEvent re-reads the active track and announces it again
// so that subscribers resynchronize.
func (s *Service) ActiveTrackAndEmitEvent() (playlist.Track, bool) {
	var (
		track playlist.Track
		ok    bool
	)
	s.mutate(func(p *playlist.Playlist) {
		if track, ok = p.ActiveTrack(); !ok {
			return
		}
		idx, _ := p.Active().Index()
		s.queue(playlist.Announced{Track: track, Index: idx})
	})
	return track, ok
}

// UpdatePlaybackProgress records elapsed time for the streaming entry.
func (s *Service) UpdatePlaybackProgress(entry uint64, elapsed time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistOrDefault().UpdatePlaybackProgress(entry, elapsed)
}

// Shuffle shuffles the playlist keeping the active track first.
func (s *Service) Shuffle() {
	s.mutate(func(p *playlist.Playlist) {
		p.Shuffle()
	})
}

// Clear empties the playlist.
func (s *Service) Clear() {
	s.mutate(func(p *playlist.Playlist) {
		p.Clear()
		s.paused = false
	})
}

// Stop empties the playlist and tells the voice output to stop for good.
func (s *Service) Stop() {
	s.mutate(func(p *playlist.Playlist) {
		p.Clear()
		s.paused = false
		s.pending = append(s.pending, events.Stopped{})
	})
}

// TogglePause flips the pause state. ok is false when nothing is playing.
func (s *Service) TogglePause() (paused bool, ok bool) {
	s.mutate(func(p *playlist.Playlist) {
		if p.State() != playlist.Playing {
			return
		}
		ok = true
		s.paused = !s.paused
		paused = s.paused
		s.pending = append(s.pending, events.Paused{Paused: paused})
	})
	return paused, ok
}

// SetPaused sets the pause state; false when nothing is playing.
func (s *Service) SetPaused(paused bool) bool {
	var ok bool
	s.mutate(func(p *playlist.Playlist) {
		if p.State() != playlist.Playing {
			return
		}
		ok = true
		if s.paused == paused {
			return
		}
		s.paused = paused
		s.pending = append(s.pending, events.Paused{Paused: paused})
	})
	return ok
}

// IsPaused reports the pause state.
func (s *Service) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetVolume stores the playback volume, clamped to [0, MaxVolume], and
// returns the stored value.
func (s *Service) SetVolume(percent int) int {
	var v int
	s.mutate(func(*playlist.Playlist) {
		v = clampVolume(percent)
		if v == s.volume {
			return
		}
		s.volume = v
		s.pending = append(s.pending, events.VolumeChanged{Percent: v})
	})
	return v
}

// Volume returns the playback volume in percent.
func (s *Service) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// playlistOrDefault must be called with s.mu held.
func (s *Service) playlistOrDefault() *playlist.Playlist {
	if s.playlist == nil {
		s.playlist = playlist.New(s.queue)
	}
	return s.playlist
}

// queue collects an event for delivery; called with s.mu held.
func (s *Service) queue(e events.Event) {
	s.pending = append(s.pending, e)
	// every announce, re-announcements included, resumes playback
	if _, ok := e.(playlist.Announced); ok && s.paused {
		s.paused = false
		s.pending = append(s.pending, events.Paused{Paused: false})
	}
}

func (s *Service) mutate(fn func(p *playlist.Playlist)) {
	s.mu.Lock()
	fn(s.playlistOrDefault())
	s.mu.Unlock()
	s.flush()
}

// flush delivers pending events. Only one goroutine delivers at a time; a
// goroutine that finds delivery in progress leaves its events to the running
// deliverer, which rechecks the queue before it quits. This also makes
// handlers that call back into the service safe.
func (s *Service) flush() {
	for {
		if !s.dispatchMu.TryLock() {
			return
		}
		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, e := range batch {
				s.log.WithField("event", e.Topic()).Debug("Publishing")
				s.dispatcher.Publish(e)
			}
		}
		s.dispatchMu.Unlock()

		s.mu.Lock()
		more := len(s.pending) > 0
		s.mu.Unlock()
		if !more {
			return
		}
	}
}

func clampVolume(v int) int {
	return min(max(v, 0), MaxVolume)
}
