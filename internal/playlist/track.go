package playlist

import "time"

// RemoteImage is an artwork reference served by the media source.
type RemoteImage struct {
	Type string
	URL  string
}

// Track is one queued playable item.
//
// ID, Name, Duration and RemoteImages identify the media and never change
// once queued. Playing and PlaybackProgress are owned by the Playlist holding
// the track; values read from a Playlist are copies.
type Track struct {
	ID           string
	Name         string
	Duration     time.Duration
	RemoteImages []RemoteImage

	Playing          bool
	PlaybackProgress time.Duration

	entry uint64
}

// NewTrack builds a not-yet-queued track. Negative durations are clamped to zero.
func NewTrack(id, name string, duration time.Duration, images ...RemoteImage) Track {
	if duration < 0 {
		duration = 0
	}
	return Track{
		ID:           id,
		Name:         name,
		Duration:     duration,
		RemoteImages: images,
	}
}

// Entry identifies this queue entry within its playlist. Two entries of the
// same media id have different entry numbers. Zero means "never queued".
func (t Track) Entry() uint64 {
	return t.entry
}

// PrimaryImage returns the first artwork URL, if any.
func (t Track) PrimaryImage() (string, bool) {
	for _, img := range t.RemoteImages {
		if img.URL != "" {
			return img.URL, true
		}
	}
	return "", false
}

// Remaining is the unplayed part of the track.
func (t Track) Remaining() time.Duration {
	if t.PlaybackProgress >= t.Duration {
		return 0
	}
	return t.Duration - t.PlaybackProgress
}
