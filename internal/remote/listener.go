// Package remote executes commands sent by Jellyfin clients that picked the
// bot as their playback target.
package remote

import (
	"context"
	"errors"
	"fmt"

	"jellycord/internal/metrics"
	"jellycord/internal/playlist"
	"jellycord/pkg/util"

	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned when no guild session can take the command.
var ErrNoSession = errors.New("no active playback session")

const resolveWorkers = 4

// Catalog resolves an item id into a playable track.
type Catalog interface {
	ResolveTrack(ctx context.Context, id string) (playlist.Track, error)
}

// Orchestrator is the playback surface the listener drives.
type Orchestrator interface {
	EnqueueBatch(tracks []playlist.Track, playNext bool) (first uint64, length int)
	SetActiveEntry(entry uint64) error
	ActiveTrackAndEmitEvent() (playlist.Track, bool)
	NextTrack() bool
	PreviousTrack() bool
	TogglePause() (paused bool, ok bool)
	SetPaused(paused bool) bool
	Stop()
	SetVolume(percent int) int
}

// Target picks the session a remote command applies to.
type Target interface {
	ActiveOrchestrator() (Orchestrator, bool)
}

// TargetFunc adapts a function to Target.
type TargetFunc func() (Orchestrator, bool)

func (f TargetFunc) ActiveOrchestrator() (Orchestrator, bool) { return f() }

// Listener applies remote commands to the targeted session.
type Listener struct {
	catalog Catalog
	target  Target
	log     *logrus.Entry
}

// NewListener creates a listener.
func NewListener(catalog Catalog, target Target, log *logrus.Entry) *Listener {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Listener{
		catalog: catalog,
		target:  target,
		log:     log.WithField("component", "remote"),
	}
}

// Play resolves the selected items and queues them. Items that cannot be
// resolved are logged and skipped. For PlayNow the first queued item is made
// active and announced so the request takes effect immediately. It returns
// the number of queued tracks.
func (l *Listener) Play(ctx context.Context, req PlayRequest) (int, error) {
	metrics.Command("remote", "play")
	orch, ok := l.target.ActiveOrchestrator()
	if !ok {
		return 0, ErrNoSession
	}
	if req.Selection.Empty() {
		return 0, nil
	}

	tracks := l.resolve(ctx, req.Selection.IDs())
	if len(tracks) == 0 {
		l.log.WithField("items", len(req.Selection.IDs())).Warn("None of the requested items could be resolved")
		return 0, nil
	}

	first, _ := orch.EnqueueBatch(tracks, req.Command == PlayNext)
	if req.Command != PlayNow {
		return len(tracks), nil
	}

	// Activation goes by entry: ids may repeat within the request and the
	// queue.
	if err := orch.SetActiveEntry(first); err != nil {
		return len(tracks), fmt.Errorf("activate %s: %w", tracks[0].ID, err)
	}
	orch.ActiveTrackAndEmitEvent()
	return len(tracks), nil
}

// resolve looks items up concurrently and returns the resolved tracks in
// request order.
func (l *Listener) resolve(ctx context.Context, ids []string) []playlist.Track {
	slots := make([]*playlist.Track, len(ids))
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}

	_ = util.Parallel(ctx, idx, resolveWorkers, func(ctx context.Context, i int) error {
		track, err := l.catalog.ResolveTrack(ctx, ids[i])
		if err != nil {
			l.log.WithError(err).WithField("item", ids[i]).Warn("Skipping unresolvable item")
			return nil
		}
		slots[i] = &track
		return nil
	})

	out := make([]playlist.Track, 0, len(ids))
	for _, t := range slots {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// Playstate applies a transport command.
func (l *Listener) Playstate(_ context.Context, cmd PlaystateCommand) error {
	metrics.Command("remote", string(cmd))
	orch, ok := l.target.ActiveOrchestrator()
	if !ok {
		return ErrNoSession
	}

	var done bool
	switch cmd {
	case PlayPause:
		_, done = orch.TogglePause()
	case Pause:
		done = orch.SetPaused(true)
	case Unpause:
		done = orch.SetPaused(false)
	case NextTrack:
		done = orch.NextTrack()
	case PreviousTrack:
		done = orch.PreviousTrack()
	case Stop:
		orch.Stop()
		done = true
	default:
		l.log.WithField("command", cmd).Debug("Unsupported playstate command")
		return nil
	}

	if !done {
		l.log.WithField("command", cmd).Debug("Playstate command had nothing to act on")
	}
	return nil
}

// SetVolume sets the session volume in percent.
func (l *Listener) SetVolume(_ context.Context, percent int) error {
	metrics.Command("remote", "volume")
	orch, ok := l.target.ActiveOrchestrator()
	if !ok {
		return ErrNoSession
	}
	orch.SetVolume(percent)
	return nil
}
