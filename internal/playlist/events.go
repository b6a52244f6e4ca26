package playlist

import "jellycord/internal/events"

// Enqueued is emitted before tracks are inserted.
type Enqueued struct {
	Count          int
	PreviousActive ActiveState
}

func (Enqueued) Topic() events.Topic { return events.PlaylistEnqueued }

// MovedNext is emitted after the active index moved forward.
type MovedNext struct {
	NewActiveIndex int
}

func (MovedNext) Topic() events.Topic { return events.PlaylistNext }

// MovedPrevious is emitted after the active index moved back.
type MovedPrevious struct {
	NewActiveIndex int
}

func (MovedPrevious) Topic() events.Topic { return events.PlaylistPrevious }

// Cleared is emitted before the playlist is emptied.
type Cleared struct {
	Count          int
	PreviousActive ActiveState
}

func (Cleared) Topic() events.Topic { return events.PlaylistClear }

// Shuffled is emitted after a shuffle. The active track, if any, is at index 0.
type Shuffled struct {
	Active ActiveState
}

func (Shuffled) Topic() events.Topic { return events.PlaylistShuffle }

// Finished carries the track that stops being the playing one.
type Finished struct {
	Track Track
}

func (Finished) Topic() events.Topic { return events.TrackFinish }

// Announced carries the track that just became (or is re-announced as) active.
type Announced struct {
	Track Track
	Index int
}

func (Announced) Topic() events.Topic { return events.TrackAnnounce }
