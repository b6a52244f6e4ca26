package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/playback"
	"jellycord/internal/playlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	n     int
	err   error
	empty bool
}

func (f *fakeSource) RadioTracks(_ context.Context, n int) ([]playlist.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	out := make([]playlist.Track, n)
	for i := range out {
		f.n++
		id := fmt.Sprintf("r%d", f.n)
		out[i] = playlist.NewTrack(id, "Random "+id, time.Minute)
	}
	return out, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestToggleClearsAndPrimes(t *testing.T) {
	svc := playback.NewService(events.NewDispatcher())
	svc.EnqueueTracks([]playlist.Track{playlist.NewTrack("a", "A", time.Minute)}, false)
	m := New(context.Background(), svc, &fakeSource{})
	defer m.Close()

	on, err := m.Toggle(context.Background())

	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, m.Enabled())
	snap := svc.Playlist()
	require.Len(t, snap.Tracks, 1)
	assert.Equal(t, "r1", snap.Tracks[0].ID)
	assert.True(t, snap.Tracks[0].Playing)

	on, err = m.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, on)
	assert.Len(t, svc.Playlist().Tracks, 1, "turning radio off keeps the queue")
}

func TestRefillsWhenPlaylistRunsOut(t *testing.T) {
	svc := playback.NewService(events.NewDispatcher())
	m := New(context.Background(), svc, &fakeSource{})
	defer m.Close()
	_, err := m.Toggle(context.Background())
	require.NoError(t, err)

	first, ok := svc.ActiveTrack()
	require.True(t, ok)
	assert.False(t, svc.AdvanceAfterFinish(first.Entry()))

	require.Eventually(t, func() bool {
		active, ok := svc.ActiveTrack()
		return ok && active.ID == "r2" && active.Playing
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, svc.Playlist().Tracks, 2)
}

func TestNoRefillWhenDisabled(t *testing.T) {
	svc := playback.NewService(events.NewDispatcher())
	src := &fakeSource{}
	m := New(context.Background(), svc, src)
	svc.EnqueueTracks([]playlist.Track{playlist.NewTrack("a", "A", time.Minute)}, false)

	active, _ := svc.ActiveTrack()
	svc.AdvanceAfterFinish(active.Entry())
	m.Close()

	assert.Len(t, svc.Playlist().Tracks, 1)
	assert.Zero(t, src.n)
}

func TestFailedRefillIsNotFatal(t *testing.T) {
	svc := playback.NewService(events.NewDispatcher())
	src := &fakeSource{}
	m := New(context.Background(), svc, src, WithEnabled(true))
	svc.EnqueueTracks([]playlist.Track{playlist.NewTrack("a", "A", time.Minute)}, false)
	src.fail(errors.New("jellyfin down"))

	active, _ := svc.ActiveTrack()
	svc.AdvanceAfterFinish(active.Entry())
	m.Close()

	assert.True(t, m.Enabled())
	assert.Len(t, svc.Playlist().Tracks, 1)
	assert.False(t, svc.Playlist().Tracks[0].Playing)
}

func TestTogglePrimeWithEmptySource(t *testing.T) {
	svc := playback.NewService(events.NewDispatcher())
	m := New(context.Background(), svc, &fakeSource{empty: true})
	defer m.Close()

	on, err := m.Toggle(context.Background())

	assert.True(t, on)
	assert.ErrorIs(t, err, ErrNothingFetched)
	assert.Empty(t, svc.Playlist().Tracks)
}
