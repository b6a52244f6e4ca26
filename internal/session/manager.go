package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"jellycord/internal/events"
	"jellycord/internal/jellyfin"
	"jellycord/internal/metrics"
	"jellycord/internal/remote"
	"jellycord/internal/voice"
	"jellycord/pkg/jobmgr"

	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned for guilds without a session.
var ErrNoSession = errors.New("no session for this guild")

// Options are the collaborators shared by all sessions.
type Options struct {
	Catalog        Catalog
	Store          Store
	Source         voice.Source
	Link           func(guildID string) Link
	Reporter       func(state jellyfin.PlaybackState, log *logrus.Entry) Reporter
	ReportInterval time.Duration
	Encoder        func() (voice.Encoder, error)
	Jobs           *jobmgr.Manager
	Log            *logrus.Entry
}

// Info is a read-only summary of a session.
type Info struct {
	GuildID      string `json:"guild_id"`
	ChannelID    string `json:"channel_id,omitempty"`
	Tracks       int    `json:"tracks"`
	ActiveTrack  string `json:"active_track,omitempty"`
	Streaming    bool   `json:"streaming"`
	Paused       bool   `json:"paused"`
	Volume       int    `json:"volume"`
	RadioEnabled bool   `json:"radio_enabled"`
}

// Manager owns the sessions of all guilds and remembers which one was used
// last; remote control commands go there.
type Manager struct {
	ctx  context.Context
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	active   string
}

// NewManager creates a manager whose sessions end with ctx.
func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Jobs == nil {
		opts.Jobs = jobmgr.NewManager(ctx, opts.Log)
	}
	return &Manager{
		ctx:      ctx,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of a guild if it exists.
func (m *Manager) Get(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[guildID]
	return s, ok
}

// GetOrCreate returns the session of a guild, creating it on first use, and
// marks it as the most recently active one.
func (m *Manager) GetOrCreate(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = guildID
	if s, ok := m.sessions[guildID]; ok {
		return s
	}

	s := newSession(m.ctx, guildID, &m.opts)
	s.unsubs = append(s.unsubs, s.Playback.Subscribe(events.TrackAnnounce, func(events.Event) {
		m.touch(guildID)
	}))
	m.sessions[guildID] = s
	metrics.SessionOpened()

	if s.reporter != nil {
		rep, interval := s.reporter, m.opts.ReportInterval
		if err := m.opts.Jobs.Start(reporterJob(guildID), func(ctx context.Context) error {
			return rep.Run(ctx, interval)
		}); err != nil {
			s.log.WithError(err).Warn("Failed to start play-state reporter")
		}
	}

	s.log.Info("Session created")
	return s
}

func (m *Manager) touch(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[guildID]; ok {
		m.active = guildID
	}
}

// ActiveOrchestrator returns the playback service of the most recently
// active session.
func (m *Manager) ActiveOrchestrator() (remote.Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.active]
	if !ok {
		return nil, false
	}
	return s.Playback, true
}

// Close ends the session of a guild and leaves its voice channel.
func (m *Manager) Close(guildID string) error {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	if m.active == guildID {
		m.active = ""
	}
	m.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	return m.closeSession(s)
}

func (m *Manager) closeSession(s *Session) error {
	err := s.close()
	if s.reporter != nil {
		_ = m.opts.Jobs.Stop(reporterJob(s.GuildID))
	}
	metrics.SessionClosed()
	s.log.Info("Session closed")
	return err
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.active = ""
	m.mu.Unlock()

	for _, s := range all {
		if err := m.closeSession(s); err != nil {
			s.log.WithError(err).Warn("Failed to close session cleanly")
		}
	}
}

// List summarises all sessions ordered by guild.
func (m *Manager) List() []Info {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(all))
	for _, s := range all {
		snap := s.Playback.Playlist()
		info := Info{
			GuildID:      s.GuildID,
			ChannelID:    s.ChannelID(),
			Tracks:       len(snap.Tracks),
			Streaming:    s.Streaming(),
			Paused:       s.Playback.IsPaused(),
			Volume:       s.Playback.Volume(),
			RadioEnabled: s.Radio.Enabled(),
		}
		if t, ok := snap.ActiveTrack(); ok {
			info.ActiveTrack = t.Name
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

func reporterJob(guildID string) string {
	return "reporter:" + guildID
}
