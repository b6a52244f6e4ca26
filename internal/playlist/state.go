package playlist

import "strconv"

// ActiveState is either NotStarted or Active(index).
type ActiveState struct {
	index  int
	active bool
}

// NotStarted is the state of a playlist that has no active track.
func NotStarted() ActiveState {
	return ActiveState{}
}

// Active points at the track at index.
func Active(index int) ActiveState {
	return ActiveState{index: index, active: true}
}

// Index returns the active index and whether there is one.
func (s ActiveState) Index() (int, bool) {
	return s.index, s.active
}

func (s ActiveState) String() string {
	if !s.active {
		return "not-started"
	}
	return "active(" + strconv.Itoa(s.index) + ")"
}

// State is the coarse playlist state.
type State int

const (
	Empty State = iota
	Stopped
	Playing
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	}
	return "unknown"
}
