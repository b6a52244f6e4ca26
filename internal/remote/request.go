package remote

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Selection names the items a remote play request wants. It is either a
// single item picked out of the request's list or the whole list in order.
type Selection struct {
	ids    []string
	single bool
}

// Single selects one item.
func Single(id string) Selection {
	return Selection{ids: []string{id}, single: true}
}

// All selects every item in order.
func All(ids ...string) Selection {
	return Selection{ids: slices.Clone(ids)}
}

// IDs returns the selected ids in playback order.
func (s Selection) IDs() []string {
	return slices.Clone(s.ids)
}

// IsSingle reports whether the request picked one item out of a list.
func (s Selection) IsSingle() bool {
	return s.single
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.ids) == 0
}

// PlayCommand is how a remote client wants the items queued.
type PlayCommand string

const (
	PlayNow  PlayCommand = "PlayNow"
	PlayNext PlayCommand = "PlayNext"
	PlayLast PlayCommand = "PlayLast"
)

// PlayRequest is a decoded remote "Play" message.
type PlayRequest struct {
	Selection Selection
	Command   PlayCommand
}

type playPayload struct {
	ItemIDs     []string    `json:"ItemIds"`
	StartIndex  *int        `json:"StartIndex"`
	PlayCommand PlayCommand `json:"PlayCommand"`
}

// UnmarshalJSON decodes the server payload straight into a Selection:
// a StartIndex picks that single item, otherwise every item is selected.
func (r *PlayRequest) UnmarshalJSON(data []byte) error {
	var p playPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	switch {
	case p.StartIndex == nil:
		r.Selection = All(p.ItemIDs...)
	case *p.StartIndex < 0 || *p.StartIndex >= len(p.ItemIDs):
		return fmt.Errorf("start index %d out of range for %d items", *p.StartIndex, len(p.ItemIDs))
	default:
		r.Selection = Single(p.ItemIDs[*p.StartIndex])
	}

	r.Command = p.PlayCommand
	if r.Command == "" {
		r.Command = PlayNow
	}
	return nil
}

// PlaystateCommand is a transport control sent by a remote client.
type PlaystateCommand string

const (
	PlayPause     PlaystateCommand = "PlayPause"
	Pause         PlaystateCommand = "Pause"
	Unpause       PlaystateCommand = "Unpause"
	NextTrack     PlaystateCommand = "NextTrack"
	PreviousTrack PlaystateCommand = "PreviousTrack"
	Stop          PlaystateCommand = "Stop"
)
