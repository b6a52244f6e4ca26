package music

import (
	"context"
	"sync"
	"time"

	"jellycord/internal/playlist"
	"jellycord/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ViewSource returns what a view shows. ok is false once the session is
// gone.
type ViewSource func() (snap playlist.Snapshot, paused bool, ok bool)

// EditFunc replaces the message a view lives in.
type EditFunc func(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error

type view struct {
	id     string
	source ViewSource
	edit   EditFunc

	mu   sync.Mutex
	page int
}

// Views keeps open playlist messages fresh and expires them.
type Views struct {
	Timeout  time.Duration
	Refresh  time.Duration
	PageSize int

	jobs *jobmgr.Manager
	log  *logrus.Entry

	mu    sync.Mutex
	views map[string]*view
}

func NewViews(jobs *jobmgr.Manager, timeout, refresh time.Duration, pageSize int, log *logrus.Entry) *Views {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Views{
		Timeout:  timeout,
		Refresh:  refresh,
		PageSize: pageSize,
		jobs:     jobs,
		log:      log.WithField("component", "playlist-view"),
		views:    make(map[string]*view),
	}
}

// Open registers a view, renders its first page and starts refreshing it
// until Timeout. The caller sends the first page itself.
func (vs *Views) Open(source ViewSource, edit EditFunc) (string, *discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	v := &view{id: uuid.NewString(), source: source, edit: edit}
	embed, components := vs.render(v)

	vs.mu.Lock()
	vs.views[v.id] = v
	vs.mu.Unlock()

	if err := vs.jobs.Start(viewJob(v.id), vs.run(v)); err != nil {
		vs.remove(v.id)
		return "", nil, nil, err
	}
	return v.id, embed, components, nil
}

// Turn moves a view by delta pages. ok is false for unknown or expired
// views.
func (vs *Views) Turn(id string, delta int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, bool) {
	vs.mu.Lock()
	v, ok := vs.views[id]
	vs.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	v.mu.Lock()
	v.page += delta
	v.mu.Unlock()

	embed, components := vs.render(v)
	return embed, components, true
}

// Close stops refreshing a view.
func (vs *Views) Close(id string) {
	vs.remove(id)
	_ = vs.jobs.Stop(viewJob(id))
}

// Len returns the number of live views.
func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}

func (vs *Views) remove(id string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	delete(vs.views, id)
}

func (vs *Views) render(v *view) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	snap, paused, _ := v.source()

	v.mu.Lock()
	defer v.mu.Unlock()
	embed, page, pages := renderPlaylist(snap, v.page, vs.PageSize, paused)
	v.page = page
	return embed, pageButtons(v.id, page, pages)
}

func (vs *Views) run(v *view) jobmgr.Runner {
	return func(ctx context.Context) error {
		var tick <-chan time.Time
		if vs.Refresh > 0 {
			ticker := time.NewTicker(vs.Refresh)
			defer ticker.Stop()
			tick = ticker.C
		}
		expire := time.NewTimer(vs.Timeout)
		defer expire.Stop()

		for {
			select {
			case <-ctx.Done():
				vs.remove(v.id)
				return ctx.Err()
			case <-tick:
				embed, components := vs.render(v)
				if err := v.edit(embed, components); err != nil {
					vs.log.WithError(err).Debug("Failed to refresh playlist view")
				}
			case <-expire.C:
				vs.remove(v.id)
				embed, _ := vs.render(v)
				return v.edit(embed, nil)
			}
		}
	}
}

func pageButtons(id string, page, pages int) []discordgo.MessageComponent {
	if pages <= 1 {
		return []discordgo.MessageComponent{}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Previous",
				Style:    discordgo.SecondaryButton,
				CustomID: "playlist:prev:" + id,
				Disabled: page == 0,
			},
			discordgo.Button{
				Label:    "Next",
				Style:    discordgo.SecondaryButton,
				CustomID: "playlist:next:" + id,
				Disabled: page >= pages-1,
			},
		}},
	}
}

func viewJob(id string) string {
	return "playlist-view:" + id
}
