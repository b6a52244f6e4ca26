package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/playback"
	"jellycord/internal/playlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameBytes = frameSize * channels * 2

type fakeSource struct {
	mu     sync.Mutex
	frames map[string]int // url -> frames; missing means endless
	hold   chan struct{}  // when set, the first read waits for it
	opened []string
}

type heldReader struct {
	gate <-chan struct{}
	r    io.Reader
}

func (h *heldReader) Read(p []byte) (int, error) {
	<-h.gate
	return h.r.Read(p)
}

func (f *fakeSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)

	if n, ok := f.frames[url]; ok {
		var r io.Reader = bytes.NewReader(make([]byte, n*frameBytes))
		if f.hold != nil {
			r = &heldReader{gate: f.hold, r: r}
		}
		return io.NopCloser(r), nil
	}

	r, w := io.Pipe()
	go func() {
		<-ctx.Done()
		_ = w.CloseWithError(io.EOF)
	}()
	return r, nil
}

func (f *fakeSource) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

type fakeSink struct {
	mu     sync.Mutex
	frames int
}

func (s *fakeSink) Speaking(bool) error { return nil }

func (s *fakeSink) Send(_ context.Context, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *fakeSink) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

type sinkProvider struct {
	sink FrameSink
	err  error
}

func (p sinkProvider) Sink() (FrameSink, error) { return p.sink, p.err }

type rawEncoder struct{}

func (rawEncoder) Encode(pcm []int16) ([]byte, error) { return []byte{byte(pcm[0])}, nil }

func newOutput(t *testing.T, src *fakeSource, sinks SinkProvider) (*playback.Service, *Output) {
	t.Helper()
	svc := playback.NewService(events.NewDispatcher())
	out := NewOutput(svc, func(id string) string { return "url:" + id }, src, sinks,
		WithEncoder(func() (Encoder, error) { return rawEncoder{}, nil }))
	t.Cleanup(out.Close)
	return svc, out
}

func tracks(ids ...string) []playlist.Track {
	out := make([]playlist.Track, len(ids))
	for i, id := range ids {
		out[i] = playlist.NewTrack(id, "Track "+id, time.Second)
	}
	return out
}

func TestPlaysThroughThePlaylist(t *testing.T) {
	src := &fakeSource{frames: map[string]int{"url:a": 3, "url:b": 2}}
	sink := &fakeSink{}
	svc, out := newOutput(t, src, sinkProvider{sink: sink})

	var noNext int
	var mu sync.Mutex
	svc.Subscribe(events.TrackNoNextTrack, func(events.Event) {
		mu.Lock()
		noNext++
		mu.Unlock()
	})

	svc.EnqueueTracks(tracks("a", "b"), false)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		_, streaming := out.Streaming()
		return noNext == 1 && !streaming
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"url:a", "url:b"}, src.urls())
	assert.Equal(t, 5, sink.sent())
	active, ok := svc.ActiveTrack()
	require.True(t, ok)
	assert.Equal(t, "b", active.ID)
	assert.False(t, active.Playing)
}

func TestReannouncementDoesNotRestart(t *testing.T) {
	src := &fakeSource{}
	svc, out := newOutput(t, src, sinkProvider{sink: &fakeSink{}})

	svc.EnqueueTracks(tracks("a"), false)
	require.Eventually(t, func() bool { return len(src.urls()) == 1 }, time.Second, 5*time.Millisecond)
	entry, ok := out.Streaming()
	require.True(t, ok)

	svc.ActiveTrackAndEmitEvent()
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, src.urls(), 1)
	again, _ := out.Streaming()
	assert.Equal(t, entry, again)
}

func TestNextSwitchesStream(t *testing.T) {
	src := &fakeSource{}
	svc, out := newOutput(t, src, sinkProvider{sink: &fakeSink{}})

	svc.EnqueueTracks(tracks("a", "b"), false)
	require.Eventually(t, func() bool { return len(src.urls()) == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, svc.NextTrack())

	require.Eventually(t, func() bool { return len(src.urls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"url:a", "url:b"}, src.urls())
	active, _ := svc.ActiveTrack()
	entry, ok := out.Streaming()
	require.True(t, ok)
	assert.Equal(t, active.Entry(), entry)
}

func TestStopSilencesOutput(t *testing.T) {
	src := &fakeSource{}
	svc, out := newOutput(t, src, sinkProvider{sink: &fakeSink{}})

	svc.EnqueueTracks(tracks("a"), false)
	require.Eventually(t, func() bool { return len(src.urls()) == 1 }, time.Second, 5*time.Millisecond)

	svc.Stop()

	_, streaming := out.Streaming()
	assert.False(t, streaming)
	assert.Empty(t, svc.Playlist().Tracks)
}

func TestNotConnectedKeepsTrackActive(t *testing.T) {
	src := &fakeSource{frames: map[string]int{"url:a": 1, "url:b": 1}}
	svc, out := newOutput(t, src, sinkProvider{err: ErrNotConnected})

	svc.EnqueueTracks(tracks("a", "b"), false)
	require.Eventually(t, func() bool {
		_, streaming := out.Streaming()
		return !streaming
	}, time.Second, 5*time.Millisecond)

	active, _ := svc.ActiveTrack()
	assert.Equal(t, "a", active.ID)
	assert.True(t, active.Playing)
	assert.Empty(t, src.urls())
}

func TestPauseHoldsFrames(t *testing.T) {
	hold := make(chan struct{})
	src := &fakeSource{frames: map[string]int{"url:a": 5}, hold: hold}
	sink := &fakeSink{}
	svc, _ := newOutput(t, src, sinkProvider{sink: sink})

	svc.EnqueueTracks(tracks("a"), false)
	require.Eventually(t, func() bool { return len(src.urls()) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, svc.SetPaused(true))
	close(hold)

	// at most the frame already being read goes out
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, sink.sent(), 1)

	require.True(t, svc.SetPaused(false))
	require.Eventually(t, func() bool { return sink.sent() == 5 }, time.Second, 5*time.Millisecond)
}

func TestReannouncementResumesPausedStream(t *testing.T) {
	hold := make(chan struct{})
	src := &fakeSource{frames: map[string]int{"url:a": 5}, hold: hold}
	sink := &fakeSink{}
	svc, _ := newOutput(t, src, sinkProvider{sink: sink})

	svc.EnqueueTracks(tracks("a"), false)
	require.Eventually(t, func() bool { return len(src.urls()) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, svc.SetPaused(true))
	close(hold)
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, sink.sent(), 1)

	svc.ActiveTrackAndEmitEvent()

	assert.False(t, svc.IsPaused())
	require.Eventually(t, func() bool { return sink.sent() == 5 }, time.Second, 5*time.Millisecond)
	assert.Len(t, src.urls(), 1, "the stream is not restarted")
}

func TestScale(t *testing.T) {
	src := make([]byte, 6)
	for i, v := range []int16{1000, -1000, 30000} {
		binary.LittleEndian.PutUint16(src[i*2:], uint16(v))
	}
	dst := make([]int16, 3)

	scale(dst, src, 100)
	assert.Equal(t, []int16{1000, -1000, 30000}, dst)

	scale(dst, src, 50)
	assert.Equal(t, []int16{500, -500, 15000}, dst)

	scale(dst, src, 150)
	assert.Equal(t, []int16{1500, -1500, 32767}, dst)

	scale(dst, src, 0)
	assert.Equal(t, []int16{0, 0, 0}, dst)
}
