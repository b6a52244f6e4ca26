package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"jellycord/internal/jellyfin"
	"jellycord/internal/playlist"
	"jellycord/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func songs(n int) []playlist.Track {
	out := make([]playlist.Track, n)
	for i := range out {
		out[i] = playlist.NewTrack(fmt.Sprintf("id%02d", i+1), fmt.Sprintf("Song %02d", i+1), 3*time.Minute)
	}
	return out
}

func TestRenderPlaylistPages(t *testing.T) {
	tracks := songs(12)
	tracks[1].Playing = true
	tracks[1].PlaybackProgress = time.Minute
	snap := playlist.Snapshot{Tracks: tracks, Active: playlist.Active(1)}

	embed, page, pages := renderPlaylist(snap, 0, 10, false)
	assert.Equal(t, 0, page)
	assert.Equal(t, 2, pages)
	assert.Contains(t, embed.Description, "**Song 02**")
	assert.Contains(t, embed.Description, "▶")
	assert.Contains(t, embed.Description, "Song 10")
	assert.NotContains(t, embed.Description, "Song 11")
	assert.Equal(t, "Page 1/2 · 12 tracks · 36:00", embed.Footer.Text)

	embed, page, _ = renderPlaylist(snap, 7, 10, false)
	assert.Equal(t, 1, page)
	assert.Contains(t, embed.Description, "Song 12")
	assert.NotContains(t, embed.Description, "Song 10")

	embed, _, _ = renderPlaylist(snap, 0, 10, true)
	assert.Contains(t, embed.Description, "⏸")
}

func TestRenderEmptyPlaylist(t *testing.T) {
	embed, page, pages := renderPlaylist(playlist.Snapshot{Active: playlist.NotStarted()}, 3, 10, false)
	assert.Equal(t, "The playlist is empty.", embed.Description)
	assert.Zero(t, page)
	assert.Zero(t, pages)
}

func TestEnqueuedEmbed(t *testing.T) {
	tracks := songs(3)
	tracks[0].Playing = true
	snap := playlist.Snapshot{Tracks: tracks, Active: playlist.Active(0)}

	embed := enqueuedEmbed(tracks[1:], true, snap)
	assert.Equal(t, "**2 tracks** (6:00) added to play next.", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Song 01", embed.Fields[0].Value)
	assert.Equal(t, "3 tracks in the playlist", embed.Footer.Text)

	embed = enqueuedEmbed(tracks[:1], false, snap)
	assert.Equal(t, "**Song 01** (3:00) added to the end of the playlist.", embed.Description)

	embed = enqueuedEmbed(nil, false, snap)
	assert.Equal(t, "🎵 Nothing queued", embed.Title)
}

func TestTrackEmbedUsesArtwork(t *testing.T) {
	track := playlist.NewTrack("a", "Song", 2*time.Minute, playlist.RemoteImage{Type: "Primary", URL: "http://img/a"})
	track.PlaybackProgress = time.Minute

	embed := trackEmbed("Now", track)
	require.NotNil(t, embed.Thumbnail)
	assert.Equal(t, "http://img/a", embed.Thumbnail.URL)
	assert.True(t, strings.HasPrefix(embed.Description, "**Song**\n`1:00`"))
	assert.True(t, strings.HasSuffix(embed.Description, "`2:00`"))
}

func TestParseViewID(t *testing.T) {
	tests := []struct {
		in     string
		action string
		id     string
		ok     bool
	}{
		{"playlist:prev:abc", "prev", "abc", true},
		{"playlist:next:a:b", "next", "a:b", true},
		{"playlist:next:", "", "", false},
		{"playlist:jump:abc", "", "", false},
		{"other:next:abc", "", "", false},
		{"playlist", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			action, id, ok := parseViewID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.id, id)
		})
	}
}

type edits struct {
	mu    sync.Mutex
	calls [][]discordgo.MessageComponent
}

func (e *edits) edit(_ *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, components)
	return nil
}

func (e *edits) last() ([]discordgo.MessageComponent, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return nil, 0
	}
	return e.calls[len(e.calls)-1], len(e.calls)
}

func fixedSource(n int) ViewSource {
	snap := playlist.Snapshot{Tracks: songs(n), Active: playlist.NotStarted()}
	return func() (playlist.Snapshot, bool, bool) { return snap, false, true }
}

func newViews(t *testing.T, timeout, refresh time.Duration) (*Views, *jobmgr.Manager) {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	jobs := jobmgr.NewManager(ctx, log)
	return NewViews(jobs, timeout, refresh, 10, log), jobs
}

func TestViewTurnsPages(t *testing.T) {
	vs, _ := newViews(t, time.Minute, 0)
	rec := &edits{}

	id, embed, components, err := vs.Open(fixedSource(15), rec.edit)
	require.NoError(t, err)
	assert.Equal(t, "Page 1/2 · 15 tracks · 45:00", embed.Footer.Text)
	require.Len(t, components, 1)

	embed, _, ok := vs.Turn(id, 1)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "Page 2/2"))

	embed, _, ok = vs.Turn(id, 5)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "Page 2/2"))

	embed, _, ok = vs.Turn(id, -1)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "Page 1/2"))

	_, _, ok = vs.Turn("missing", 1)
	assert.False(t, ok)
}

func TestViewRefreshesAndExpires(t *testing.T) {
	vs, jobs := newViews(t, 80*time.Millisecond, 10*time.Millisecond)
	rec := &edits{}

	id, _, _, err := vs.Open(fixedSource(15), rec.edit)
	require.NoError(t, err)
	assert.Equal(t, 1, vs.Len())

	require.Eventually(t, func() bool {
		_, n := rec.last()
		return n >= 2
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		components, _ := rec.last()
		return vs.Len() == 0 && components == nil && !jobs.Running(viewJob(id))
	}, time.Second, 5*time.Millisecond)

	_, _, ok := vs.Turn(id, 1)
	assert.False(t, ok)
}

func TestViewClose(t *testing.T) {
	vs, jobs := newViews(t, time.Minute, time.Minute)

	id, _, _, err := vs.Open(fixedSource(3), (&edits{}).edit)
	require.NoError(t, err)
	require.True(t, jobs.Running(viewJob(id)))

	vs.Close(id)
	assert.Zero(t, vs.Len())
	assert.False(t, jobs.Running(viewJob(id)))
}

func TestSinglePageHasNoButtons(t *testing.T) {
	assert.Empty(t, pageButtons("x", 0, 1))
	row, ok := pageButtons("x", 0, 3)[0].(discordgo.ActionsRow)
	require.True(t, ok)
	prev := row.Components[0].(discordgo.Button)
	next := row.Components[1].(discordgo.Button)
	assert.True(t, prev.Disabled)
	assert.False(t, next.Disabled)
	assert.Equal(t, "playlist:next:x", next.CustomID)
}

type fakeCatalog struct {
	found  []jellyfin.Item
	tracks map[string][]jellyfin.Item
	kinds  []jellyfin.ItemKind
	err    error
}

func (c *fakeCatalog) Search(_ context.Context, _ string, _ int, kinds ...jellyfin.ItemKind) ([]jellyfin.Item, error) {
	c.kinds = kinds
	return c.found, c.err
}

func (c *fakeCatalog) Tracks(_ context.Context, item jellyfin.Item) ([]jellyfin.Item, error) {
	if item.Type == jellyfin.KindAudio {
		return []jellyfin.Item{item}, nil
	}
	return c.tracks[item.ID], nil
}

func (c *fakeCatalog) TracksOf(items []jellyfin.Item) []playlist.Track {
	out := make([]playlist.Track, 0, len(items))
	for _, it := range items {
		out = append(out, playlist.NewTrack(it.ID, it.Name, it.Duration()))
	}
	return out
}

func (c *fakeCatalog) RadioTracks(context.Context, int) ([]playlist.Track, error) {
	return nil, nil
}

func TestResolveExpandsBestMatch(t *testing.T) {
	cat := &fakeCatalog{
		found: []jellyfin.Item{{ID: "alb", Name: "Album", Type: jellyfin.KindAlbum}},
		tracks: map[string][]jellyfin.Item{
			"alb": {
				{ID: "t1", Name: "One", Type: jellyfin.KindAudio},
				{ID: "t2", Name: "Two", Type: jellyfin.KindAudio},
			},
		},
	}
	p := &Player{Catalog: cat}

	item, tracks, err := p.resolve(context.Background(), "album", jellyfin.KindAlbum)
	require.NoError(t, err)
	assert.Equal(t, "alb", item.ID)
	assert.Equal(t, []jellyfin.ItemKind{jellyfin.KindAlbum}, cat.kinds)
	require.Len(t, tracks, 2)
	assert.Equal(t, "t1", tracks[0].ID)
	assert.Equal(t, "t2", tracks[1].ID)

	_, _, err = p.resolve(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Empty(t, cat.kinds)
}

func TestResolveNoMatch(t *testing.T) {
	p := &Player{Catalog: &fakeCatalog{}}
	item, tracks, err := p.resolve(context.Background(), "nothing", "")
	require.NoError(t, err)
	assert.Empty(t, item.ID)
	assert.Nil(t, tracks)

	boom := errors.New("boom")
	p = &Player{Catalog: &fakeCatalog{err: boom}}
	_, _, err = p.resolve(context.Background(), "x", "")
	assert.ErrorIs(t, err, boom)
}
