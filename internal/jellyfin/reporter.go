package jellyfin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/playlist"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlaybackInfo is the body of the Sessions/Playing reports.
type PlaybackInfo struct {
	ItemID        string `json:"ItemId"`
	PlaySessionID string `json:"PlaySessionId"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused"`
	IsMuted       bool   `json:"IsMuted"`
	VolumeLevel   int    `json:"VolumeLevel"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod"`
	EventName     string `json:"EventName,omitempty"`
}

// ReportPlaying tells the server playback of an item started.
func (c *Client) ReportPlaying(ctx context.Context, info PlaybackInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing", nil, info, nil)
}

// ReportProgress updates position and pause state of the playing item.
func (c *Client) ReportProgress(ctx context.Context, info PlaybackInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Progress", nil, info, nil)
}

// ReportStopped tells the server playback of an item ended.
func (c *Client) ReportStopped(ctx context.Context, info PlaybackInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Stopped", nil, info, nil)
}

type capabilities struct {
	PlayableMediaTypes   []string `json:"PlayableMediaTypes"`
	SupportedCommands    []string `json:"SupportedCommands"`
	SupportsMediaControl bool     `json:"SupportsMediaControl"`
}

// ReportCapabilities registers the bot as a remotely controllable audio
// player so it shows up in the "play on" menu of Jellyfin clients.
func (c *Client) ReportCapabilities(ctx context.Context) error {
	body := capabilities{
		PlayableMediaTypes:   []string{"Audio"},
		SupportedCommands:    []string{"SetVolume", "Mute"},
		SupportsMediaControl: true,
	}
	return c.do(ctx, http.MethodPost, "/Sessions/Capabilities/Full", nil, body, nil)
}

// PlaybackReporter is the part of Client a Reporter sends to.
type PlaybackReporter interface {
	ReportPlaying(ctx context.Context, info PlaybackInfo) error
	ReportProgress(ctx context.Context, info PlaybackInfo) error
	ReportStopped(ctx context.Context, info PlaybackInfo) error
}

// PlaybackState is what a Reporter reads from the playback service.
type PlaybackState interface {
	Subscribe(topic events.Topic, h events.Handler) (unsubscribe func())
	ActiveTrack() (playlist.Track, bool)
	IsPaused() bool
	Volume() int
}

type reportKind int

const (
	reportPlaying reportKind = iota
	reportProgress
	reportStopped
)

type report struct {
	kind reportKind
	info PlaybackInfo
}

// Reporter mirrors a session's playback to the Jellyfin server. Event
// handlers only queue reports; Run sends them.
type Reporter struct {
	client PlaybackReporter
	state  PlaybackState
	log    *logrus.Entry

	mu      sync.Mutex
	itemID  string
	entry   uint64
	session string

	queue  chan report
	unsubs []func()
}

// NewReporter subscribes a reporter to state's events.
func NewReporter(client PlaybackReporter, state PlaybackState, log *logrus.Entry) *Reporter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Reporter{
		client: client,
		state:  state,
		log:    log.WithField("component", "reporter"),
		queue:  make(chan report, 64),
	}
	r.unsubs = []func(){
		state.Subscribe(events.TrackAnnounce, r.onAnnounce),
		state.Subscribe(events.TrackFinish, r.onFinish),
		state.Subscribe(events.PlaylistClear, r.onClear),
		state.Subscribe(events.VoicePause, r.onPause),
		state.Subscribe(events.VoiceVolume, r.onVolume),
	}
	return r
}

// Close detaches the reporter from the session.
func (r *Reporter) Close() {
	for _, unsub := range r.unsubs {
		unsub()
	}
}

// Run sends queued reports and a progress report every interval until ctx
// is done.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.stopCurrent(context.Background())
			return nil
		case rep := <-r.queue:
			r.send(ctx, rep)
		case <-ticker.C:
			if info, ok := r.current(""); ok {
				r.send(ctx, report{kind: reportProgress, info: info})
			}
		}
	}
}

func (r *Reporter) send(ctx context.Context, rep report) {
	var err error
	switch rep.kind {
	case reportPlaying:
		err = r.client.ReportPlaying(ctx, rep.info)
	case reportProgress:
		err = r.client.ReportProgress(ctx, rep.info)
	case reportStopped:
		err = r.client.ReportStopped(ctx, rep.info)
	}
	if err != nil {
		r.log.WithError(err).WithField("item", rep.info.ItemID).Warn("Failed to report playback")
	}
}

func (r *Reporter) enqueue(rep report) {
	select {
	case r.queue <- rep:
	default:
		r.log.WithField("item", rep.info.ItemID).Debug("Report queue full, dropping report")
	}
}

func (r *Reporter) onAnnounce(e events.Event) {
	ev, ok := e.(playlist.Announced)
	if !ok {
		return
	}

	r.mu.Lock()
	if r.itemID != "" && r.entry == ev.Track.Entry() {
		// same entry announced again, the server already knows it plays
		r.mu.Unlock()
		return
	}
	prevItem, prevSession := r.itemID, r.session
	r.itemID, r.entry = ev.Track.ID, ev.Track.Entry()
	r.session = uuid.NewString()
	session := r.session
	r.mu.Unlock()

	if prevItem != "" {
		r.enqueue(report{kind: reportStopped, info: r.info(prevItem, prevSession, 0, "")})
	}
	r.enqueue(report{kind: reportPlaying, info: r.info(ev.Track.ID, session, 0, "")})
}

func (r *Reporter) onFinish(e events.Event) {
	ev, ok := e.(playlist.Finished)
	if !ok {
		return
	}

	r.mu.Lock()
	if r.itemID == "" || r.entry != ev.Track.Entry() {
		r.mu.Unlock()
		return
	}
	session := r.session
	r.itemID, r.entry, r.session = "", 0, ""
	r.mu.Unlock()

	r.enqueue(report{kind: reportStopped, info: r.info(ev.Track.ID, session, Ticks(ev.Track.PlaybackProgress), "")})
}

func (r *Reporter) onClear(events.Event) {
	r.mu.Lock()
	item, session := r.itemID, r.session
	r.itemID, r.entry, r.session = "", 0, ""
	r.mu.Unlock()

	if item != "" {
		r.enqueue(report{kind: reportStopped, info: r.info(item, session, 0, "")})
	}
}

func (r *Reporter) onPause(e events.Event) {
	ev, ok := e.(events.Paused)
	if !ok {
		return
	}
	name := "Unpause"
	if ev.Paused {
		name = "Pause"
	}
	if info, ok := r.current(name); ok {
		info.IsPaused = ev.Paused
		r.enqueue(report{kind: reportProgress, info: info})
	}
}

func (r *Reporter) onVolume(events.Event) {
	if info, ok := r.current("VolumeChange"); ok {
		r.enqueue(report{kind: reportProgress, info: info})
	}
}

// current builds a progress report for the item being reported, if any.
func (r *Reporter) current(eventName string) (PlaybackInfo, bool) {
	r.mu.Lock()
	item, session := r.itemID, r.session
	r.mu.Unlock()
	if item == "" {
		return PlaybackInfo{}, false
	}

	var position time.Duration
	if track, ok := r.state.ActiveTrack(); ok && track.ID == item {
		position = track.PlaybackProgress
	}
	return r.info(item, session, Ticks(position), eventName), true
}

func (r *Reporter) stopCurrent(ctx context.Context) {
	info, ok := r.current("")
	if !ok {
		return
	}
	r.send(ctx, report{kind: reportStopped, info: info})
}

func (r *Reporter) info(item, session string, position int64, eventName string) PlaybackInfo {
	return PlaybackInfo{
		ItemID:        item,
		PlaySessionID: session,
		PositionTicks: position,
		IsPaused:      r.state.IsPaused(),
		VolumeLevel:   min(r.state.Volume(), 100),
		PlayMethod:    "Transcode",
		EventName:     eventName,
	}
}
