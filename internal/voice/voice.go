// Package voice streams the active track of a session into a Discord voice
// channel. It follows the session's events: an announced track starts
// streaming, clear and stop silence it, pause gates frames and volume scales
// them. When a track runs out the output asks the playback service to
// advance.
package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/metrics"
	"jellycord/internal/playback"
	"jellycord/internal/playlist"

	"github.com/sirupsen/logrus"
)

const progressEvery = 50 // frames, one second

// Playback is what the output needs from the playback service.
type Playback interface {
	Subscribe(topic events.Topic, h events.Handler) (unsubscribe func())
	AdvanceAfterFinish(entry uint64) bool
	UpdatePlaybackProgress(entry uint64, elapsed time.Duration) bool
	Volume() int
	IsPaused() bool
}

// URLBuilder returns the stream URL of a track id. It is called only when
// the track starts.
type URLBuilder func(id string) string

// SinkProvider hands out the frame sink of the current voice channel.
type SinkProvider interface {
	Sink() (FrameSink, error)
}

// Output plays announced tracks.
type Output struct {
	playback Playback
	urls     URLBuilder
	source   Source
	sinks    SinkProvider
	encoder  func() (Encoder, error)
	log      *logrus.Entry

	volume atomic.Int32

	mu      sync.Mutex
	current *stream
	resume  chan struct{} // non-nil while paused
	unsubs  []func()
	closed  bool
}

type stream struct {
	entry  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Output.
type Option func(*Output)

// WithEncoder replaces the Opus encoder factory.
func WithEncoder(f func() (Encoder, error)) Option {
	return func(o *Output) { o.encoder = f }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Output) { o.log = log }
}

// NewOutput subscribes an output to pb.
func NewOutput(pb Playback, urls URLBuilder, source Source, sinks SinkProvider, opts ...Option) *Output {
	o := &Output{
		playback: pb,
		urls:     urls,
		source:   source,
		sinks:    sinks,
		encoder:  NewOpusEncoder,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.WithField("component", "voice")
	o.volume.Store(int32(pb.Volume()))
	if pb.IsPaused() {
		o.resume = make(chan struct{})
	}

	o.unsubs = []func(){
		pb.Subscribe(events.TrackAnnounce, o.onAnnounce),
		pb.Subscribe(events.PlaylistClear, o.onStop),
		pb.Subscribe(events.VoiceStop, o.onStop),
		pb.Subscribe(events.VoicePause, o.onPause),
		pb.Subscribe(events.VoiceVolume, o.onVolume),
	}
	return o
}

// Close stops streaming and detaches from the session.
func (o *Output) Close() {
	for _, unsub := range o.unsubs {
		unsub()
	}

	o.mu.Lock()
	o.closed = true
	cur := o.current
	o.current = nil
	o.unpauseLocked()
	o.mu.Unlock()

	if cur != nil {
		cur.cancel()
		<-cur.done
	}
}

// Streaming returns the entry being streamed.
func (o *Output) Streaming() (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return 0, false
	}
	return o.current.entry, true
}

func (o *Output) onAnnounce(e events.Event) {
	ev, ok := e.(playlist.Announced)
	if !ok {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.current != nil && o.current.entry == ev.Track.Entry() {
		// re-announcement of what is already playing
		return
	}

	// a new track always starts unpaused
	o.unpauseLocked()

	var prev chan struct{}
	if o.current != nil {
		o.current.cancel()
		prev = o.current.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{entry: ev.Track.Entry(), cancel: cancel, done: make(chan struct{})}
	o.current = s
	go o.run(ctx, s, ev.Track, prev)
}

func (o *Output) onStop(events.Event) {
	o.mu.Lock()
	cur := o.current
	o.current = nil
	o.unpauseLocked()
	o.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
}

func (o *Output) onPause(e events.Event) {
	ev, ok := e.(events.Paused)
	if !ok {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case ev.Paused && o.resume == nil:
		o.resume = make(chan struct{})
	case !ev.Paused:
		o.unpauseLocked()
	}
}

func (o *Output) unpauseLocked() {
	if o.resume != nil {
		close(o.resume)
		o.resume = nil
	}
}

func (o *Output) onVolume(e events.Event) {
	if ev, ok := e.(events.VolumeChanged); ok {
		o.volume.Store(int32(ev.Percent))
	}
}

func (o *Output) pauseGate() chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resume
}

// run streams one entry. It waits for the previous stream to release the
// sink first.
func (o *Output) run(ctx context.Context, s *stream, track playlist.Track, prev chan struct{}) {
	defer close(s.done)
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	log := o.log.WithFields(logrus.Fields{"track": track.Name, "entry": s.entry})
	err := o.play(ctx, s.entry, track, log)
	if ctx.Err() != nil {
		log.Debug("Stream stopped")
		return
	}
	defer o.release(s)

	switch {
	case errors.Is(err, ErrNotConnected):
		// the track stays active and is announced again once the bot joins
		log.Warn("Track announced while not in a voice channel")
		return
	case err != nil:
		log.WithError(err).Warn("Stream failed, skipping track")
	default:
		log.Debug("Track finished")
	}
	o.playback.AdvanceAfterFinish(s.entry)
}

// release forgets s unless a newer stream replaced it.
func (o *Output) release(s *stream) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == s {
		o.current = nil
	}
}

func (o *Output) play(ctx context.Context, entry uint64, track playlist.Track, log *logrus.Entry) error {
	sink, err := o.sinks.Sink()
	if err != nil {
		return err
	}
	enc, err := o.encoder()
	if err != nil {
		return err
	}

	pcm, err := o.source.Open(ctx, o.urls(track.ID))
	if err != nil {
		return err
	}
	defer pcm.Close()

	metrics.TrackStarted()
	log.Info("Streaming track")
	_ = sink.Speaking(true)
	defer func() { _ = sink.Speaking(false) }()

	buf := make([]byte, frameSize*channels*2)
	samples := make([]int16, frameSize*channels)
	var frames int

	for {
		if gate := o.pauseGate(); gate != nil {
			_ = sink.Speaking(false)
			select {
			case <-gate:
				_ = sink.Speaking(true)
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := io.ReadFull(pcm, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		scale(samples, buf, o.volume.Load())
		frame, err := enc.Encode(samples)
		if err != nil {
			return err
		}
		if err := sink.Send(ctx, frame); err != nil {
			return err
		}

		frames++
		if frames%progressEvery == 0 {
			o.playback.UpdatePlaybackProgress(entry, time.Duration(frames)*20*time.Millisecond)
		}
	}
}

// scale decodes little-endian s16 PCM into dst applying volume in percent.
func scale(dst []int16, src []byte, volume int32) {
	if volume == playback.DefaultVolume {
		for i := range dst {
			dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
		}
		return
	}
	for i := range dst {
		v := int32(int16(binary.LittleEndian.Uint16(src[i*2:]))) * volume / 100
		dst[i] = int16(min(max(v, -32768), 32767))
	}
}
