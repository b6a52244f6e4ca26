// Package playlist holds the ordered queue of a session and decides which
// track is active. It knows nothing about Discord or Jellyfin: every state
// transition is reported through the injected event sink.
//
// A Playlist is not safe for concurrent use; the playback service serializes
// access to it.
package playlist

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"jellycord/internal/events"

	"github.com/samber/lo"
)

// ErrTrackNotInPlaylist is returned when a caller asks to activate a track the
// playlist does not hold.
var ErrTrackNotInPlaylist = errors.New("track is not in the playlist")

// Playlist is an ordered list of tracks plus the active track pointer.
type Playlist struct {
	tracks    []*Track
	state     ActiveState
	emit      events.Sink
	lastEntry uint64
}

// New creates an empty playlist reporting to sink. A nil sink discards events.
func New(sink events.Sink) *Playlist {
	if sink == nil {
		sink = events.Discard
	}
	return &Playlist{emit: sink}
}

// Len returns the number of queued tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// State reports whether the playlist is empty, stopped or playing.
func (p *Playlist) State() State {
	if len(p.tracks) == 0 {
		return Empty
	}
	if idx, ok := p.activeIndex(); ok && p.tracks[idx].Playing {
		return Playing
	}
	return Stopped
}

// Active returns the raw active state. The index may be stale; use
// ActiveTrack when the track itself is needed.
func (p *Playlist) Active() ActiveState {
	return p.state
}

// Tracks returns a copy of the queue in playback order.
func (p *Playlist) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	for i, t := range p.tracks {
		out[i] = *t
	}
	return out
}

// ActiveTrack returns the active track, or false when there is none or the
// active index no longer fits the queue.
func (p *Playlist) ActiveTrack() (Track, bool) {
	idx, ok := p.activeIndex()
	if !ok {
		return Track{}, false
	}
	return *p.tracks[idx], true
}

// HasNextTrack reports whether a track follows the active one.
func (p *Playlist) HasNextTrack() bool {
	idx, ok := p.activeIndex()
	return ok && idx < len(p.tracks)-1
}

// HasPreviousTrack reports whether a track precedes the active one.
func (p *Playlist) HasPreviousTrack() bool {
	idx, ok := p.activeIndex()
	return ok && idx > 0
}

// EnqueueTracks inserts tracks at the head (playNext) or the tail of the
// queue and returns the new length.
//
// When nothing was playing, the first inserted track becomes active. When a
// track was playing it stays active; a head insert shifts its index so the
// pointer keeps following it.
func (p *Playlist) EnqueueTracks(newTracks []Track, playNext bool) int {
	if len(newTracks) == 0 {
		return len(p.tracks)
	}

	p.emit(Enqueued{Count: len(newTracks), PreviousActive: p.state})

	wasPlaying := slices.ContainsFunc(p.tracks, func(t *Track) bool { return t.Playing })
	prevIdx, hadActive := p.activeIndex()

	entries := make([]*Track, len(newTracks))
	for i := range newTracks {
		t := newTracks[i]
		t.Playing = false
		t.PlaybackProgress = 0
		p.lastEntry++
		t.entry = p.lastEntry
		entries[i] = &t
	}

	insertAt := len(p.tracks)
	if playNext {
		insertAt = 0
	}
	p.tracks = slices.Insert(p.tracks, insertAt, entries...)

	switch {
	case !wasPlaying:
		p.activate(insertAt)
		p.announce(insertAt)
	case !hadActive:
		// a track claims to play without an active index
		p.activate(0)
		p.announce(0)
	case playNext:
		p.state = Active(prevIdx + len(entries))
	}

	return len(p.tracks)
}

// SetNextTrackAsActiveTrack moves to the next track. The finish of the
// current track is announced before the boundary check; false means there
// is no next track.
func (p *Playlist) SetNextTrackAsActiveTrack() bool {
	idx, ok := p.activeIndex()
	if !ok {
		return false
	}

	p.emit(Finished{Track: *p.tracks[idx]})

	if idx >= len(p.tracks)-1 {
		return false
	}

	p.activate(idx + 1)
	p.emit(MovedNext{NewActiveIndex: idx + 1})
	p.announce(idx + 1)
	return true
}

// SetPreviousTrackAsActiveTrack moves to the previous track; false at the
// start of the playlist.
func (p *Playlist) SetPreviousTrackAsActiveTrack() bool {
	idx, ok := p.activeIndex()
	if !ok {
		return false
	}

	p.emit(Finished{Track: *p.tracks[idx]})

	if idx <= 0 {
		return false
	}

	p.activate(idx - 1)
	p.emit(MovedPrevious{NewActiveIndex: idx - 1})
	p.announce(idx - 1)
	return true
}

// SetActiveTrack activates the last entry carrying id. It does not announce
// the track; callers re-announce once their batch is complete.
func (p *Playlist) SetActiveTrack(id string) error {
	target := -1
	for i := len(p.tracks) - 1; i >= 0; i-- {
		if p.tracks[i].ID == id {
			target = i
			break
		}
	}
	if target < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotInPlaylist, id)
	}
	p.setActive(target)
	return nil
}

// SetActiveEntry activates the queued entry with the given entry number.
// Unlike SetActiveTrack it tells apart repeated ids.
func (p *Playlist) SetActiveEntry(entry uint64) error {
	target := slices.IndexFunc(p.tracks, func(t *Track) bool { return t.entry == entry })
	if target < 0 {
		return fmt.Errorf("%w: entry %d", ErrTrackNotInPlaylist, entry)
	}
	p.setActive(target)
	return nil
}

// LastEntry is the entry number given to the most recently queued track.
func (p *Playlist) LastEntry() uint64 {
	return p.lastEntry
}

func (p *Playlist) setActive(target int) {
	if idx, ok := p.activeIndex(); ok && p.tracks[idx].Playing {
		if idx == target {
			return
		}
		p.emit(Finished{Track: *p.tracks[idx]})
	}

	p.activate(target)
}

// MarkActiveTrackFinished clears the playing flag of the active track after
// it ran out with nothing queued behind it. The index is kept so previous
// still works, and the next enqueue activates the new track.
func (p *Playlist) MarkActiveTrackFinished() {
	if idx, ok := p.activeIndex(); ok {
		p.tracks[idx].Playing = false
	}
}

// UpdatePlaybackProgress records the elapsed time of the active entry.
// Progress never moves backwards and updates for any other entry are
// ignored.
func (p *Playlist) UpdatePlaybackProgress(entry uint64, elapsed time.Duration) bool {
	idx, ok := p.activeIndex()
	if !ok {
		return false
	}
	t := p.tracks[idx]
	if t.entry != entry || elapsed < t.PlaybackProgress {
		return false
	}
	t.PlaybackProgress = elapsed
	return true
}

// Shuffle randomizes the queue. The active track, if any, is pinned to the
// front.
func (p *Playlist) Shuffle() {
	idx, ok := p.activeIndex()
	if !ok {
		lo.Shuffle(p.tracks)
		p.state = NotStarted()
		p.emit(Shuffled{Active: p.state})
		return
	}

	active := p.tracks[idx]
	rest := make([]*Track, 0, len(p.tracks)-1)
	rest = append(rest, p.tracks[:idx]...)
	rest = append(rest, p.tracks[idx+1:]...)
	lo.Shuffle(rest)

	p.tracks = append([]*Track{active}, rest...)
	p.state = Active(0)
	p.emit(Shuffled{Active: p.state})
}

// Clear drops every track and the active pointer.
func (p *Playlist) Clear() {
	p.emit(Cleared{Count: len(p.tracks), PreviousActive: p.state})
	p.tracks = nil
	p.state = NotStarted()
}

// Snapshot returns a detached copy for readers outside the owning service.
func (p *Playlist) Snapshot() Snapshot {
	return Snapshot{Tracks: p.Tracks(), Active: p.state}
}

// activeIndex is the active index if it is set and still within bounds.
func (p *Playlist) activeIndex() (int, bool) {
	idx, ok := p.state.Index()
	if !ok || idx < 0 || idx >= len(p.tracks) {
		return 0, false
	}
	return idx, true
}

func (p *Playlist) activate(idx int) {
	for _, t := range p.tracks {
		t.Playing = false
	}
	p.tracks[idx].Playing = true
	p.tracks[idx].PlaybackProgress = 0
	p.state = Active(idx)
}

func (p *Playlist) announce(idx int) {
	p.emit(Announced{Track: *p.tracks[idx], Index: idx})
}
