package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/playback"
	"jellycord/internal/playlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog map[string]time.Duration

func (c fakeCatalog) ResolveTrack(_ context.Context, id string) (playlist.Track, error) {
	delay, ok := c[id]
	if !ok {
		return playlist.Track{}, errors.New("not found")
	}
	time.Sleep(delay)
	return playlist.NewTrack(id, "Track "+id, time.Minute), nil
}

func newListener(catalog Catalog) (*Listener, *playback.Service) {
	svc := playback.NewService(events.NewDispatcher())
	target := TargetFunc(func() (Orchestrator, bool) { return svc, true })
	return NewListener(catalog, target, nil), svc
}

func trackIDs(svc *playback.Service) []string {
	var out []string
	for _, t := range svc.Playlist().Tracks {
		out = append(out, t.ID)
	}
	return out
}

func TestDecodePlayRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		single  bool
		ids     []string
		command PlayCommand
		wantErr bool
	}{
		{
			name:    "all items",
			payload: `{"ItemIds":["a","b","c"],"PlayCommand":"PlayNow"}`,
			ids:     []string{"a", "b", "c"},
			command: PlayNow,
		},
		{
			name:    "start index selects one",
			payload: `{"ItemIds":["a","b","c"],"StartIndex":1,"PlayCommand":"PlayNext"}`,
			single:  true,
			ids:     []string{"b"},
			command: PlayNext,
		},
		{
			name:    "start index zero",
			payload: `{"ItemIds":["a","b"],"StartIndex":0}`,
			single:  true,
			ids:     []string{"a"},
			command: PlayNow,
		},
		{
			name:    "start index out of range",
			payload: `{"ItemIds":["a"],"StartIndex":3}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PlayRequest
			err := json.Unmarshal([]byte(tt.payload), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.single, req.Selection.IsSingle())
			assert.Equal(t, tt.ids, req.Selection.IDs())
			assert.Equal(t, tt.command, req.Command)
		})
	}
}

func TestPlayQueuesInRequestOrder(t *testing.T) {
	// later items resolve first
	catalog := fakeCatalog{"a": 30 * time.Millisecond, "b": 10 * time.Millisecond, "c": 0}
	l, svc := newListener(catalog)

	n, err := l.Play(context.Background(), PlayRequest{Selection: All("a", "b", "c"), Command: PlayNow})

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, trackIDs(svc))
	active, ok := svc.ActiveTrack()
	require.True(t, ok)
	assert.Equal(t, "a", active.ID)
}

func TestPlaySkipsUnresolvableItems(t *testing.T) {
	l, svc := newListener(fakeCatalog{"a": 0, "c": 0})

	n, err := l.Play(context.Background(), PlayRequest{Selection: All("missing", "a", "c"), Command: PlayNow})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "c"}, trackIDs(svc))
	active, _ := svc.ActiveTrack()
	assert.Equal(t, "a", active.ID)
}

func TestPlayNowTakesOverExistingQueue(t *testing.T) {
	l, svc := newListener(fakeCatalog{"x": 0, "y": 0, "new": 0})
	svc.EnqueueTracks([]playlist.Track{
		playlist.NewTrack("x", "X", time.Minute),
		playlist.NewTrack("y", "Y", time.Minute),
	}, false)

	var announced []string
	svc.Subscribe(events.TrackAnnounce, func(e events.Event) {
		announced = append(announced, e.(playlist.Announced).Track.ID)
	})

	_, err := l.Play(context.Background(), PlayRequest{Selection: Single("new"), Command: PlayNow})

	require.NoError(t, err)
	active, _ := svc.ActiveTrack()
	assert.Equal(t, "new", active.ID)
	assert.Equal(t, []string{"new"}, announced)
}

func announcedIndexes(svc *playback.Service) *[]int {
	var got []int
	svc.Subscribe(events.TrackAnnounce, func(e events.Event) {
		got = append(got, e.(playlist.Announced).Index)
	})
	return &got
}

func TestPlayNowWithRepeatedIDsIntoEmptyPlaylist(t *testing.T) {
	l, svc := newListener(fakeCatalog{"x": 0, "y": 0})
	announced := announcedIndexes(svc)
	var finished int
	svc.Subscribe(events.TrackFinish, func(events.Event) { finished++ })

	n, err := l.Play(context.Background(), PlayRequest{Selection: All("x", "y", "x"), Command: PlayNow})

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"x", "y", "x"}, trackIDs(svc))
	idx, ok := svc.Playlist().Active.Index()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []int{0, 0}, *announced)
	assert.Zero(t, finished)
}

func TestPlayNowWithRepeatedIDsIntoPlayingQueue(t *testing.T) {
	l, svc := newListener(fakeCatalog{"x": 0, "y": 0})
	svc.EnqueueTrack(playlist.NewTrack("z", "Z", time.Minute), false)
	announced := announcedIndexes(svc)

	_, err := l.Play(context.Background(), PlayRequest{Selection: All("x", "y", "x"), Command: PlayNow})

	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "y", "x"}, trackIDs(svc))
	idx, ok := svc.Playlist().Active.Index()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []int{1}, *announced)

	require.True(t, svc.NextTrack())
	active, _ := svc.ActiveTrack()
	assert.Equal(t, "y", active.ID)
}

func TestPlayNextDoesNotInterrupt(t *testing.T) {
	l, svc := newListener(fakeCatalog{"x": 0, "n": 0})
	svc.EnqueueTrack(playlist.NewTrack("x", "X", time.Minute), false)

	_, err := l.Play(context.Background(), PlayRequest{Selection: All("n"), Command: PlayNext})

	require.NoError(t, err)
	assert.Equal(t, []string{"n", "x"}, trackIDs(svc))
	active, _ := svc.ActiveTrack()
	assert.Equal(t, "x", active.ID)
}

func TestPlayWithoutSession(t *testing.T) {
	l := NewListener(fakeCatalog{}, TargetFunc(func() (Orchestrator, bool) { return nil, false }), nil)

	_, err := l.Play(context.Background(), PlayRequest{Selection: All("a")})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, l.Playstate(context.Background(), Stop), ErrNoSession)
	assert.ErrorIs(t, l.SetVolume(context.Background(), 10), ErrNoSession)
}

func TestPlaystate(t *testing.T) {
	l, svc := newListener(fakeCatalog{})
	svc.EnqueueTracks([]playlist.Track{
		playlist.NewTrack("a", "A", time.Minute),
		playlist.NewTrack("b", "B", time.Minute),
	}, false)
	ctx := context.Background()

	require.NoError(t, l.Playstate(ctx, NextTrack))
	active, _ := svc.ActiveTrack()
	assert.Equal(t, "b", active.ID)

	require.NoError(t, l.Playstate(ctx, PreviousTrack))
	active, _ = svc.ActiveTrack()
	assert.Equal(t, "a", active.ID)

	require.NoError(t, l.Playstate(ctx, PlayPause))
	assert.True(t, svc.IsPaused())
	require.NoError(t, l.Playstate(ctx, Unpause))
	assert.False(t, svc.IsPaused())

	require.NoError(t, l.SetVolume(ctx, 35))
	assert.Equal(t, 35, svc.Volume())

	require.NoError(t, l.Playstate(ctx, Stop))
	assert.False(t, svc.HasActiveTrack())

	assert.NoError(t, l.Playstate(ctx, PlaystateCommand("Seek")))
}
