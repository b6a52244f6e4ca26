package playlist

// Snapshot is a read-only copy of a playlist.
type Snapshot struct {
	Tracks []Track
	Active ActiveState
}

// ActiveTrack mirrors Playlist.ActiveTrack on the copy.
func (s Snapshot) ActiveTrack() (Track, bool) {
	idx, ok := s.Active.Index()
	if !ok || idx < 0 || idx >= len(s.Tracks) {
		return Track{}, false
	}
	return s.Tracks[idx], true
}

// Page returns the tracks of the zero-based page and the page count.
func (s Snapshot) Page(page, size int) ([]Track, int) {
	if size <= 0 || len(s.Tracks) == 0 {
		return nil, 0
	}
	pages := (len(s.Tracks) + size - 1) / size
	page = min(max(page, 0), pages-1)
	start := page * size
	end := min(start+size, len(s.Tracks))
	return s.Tracks[start:end], pages
}
