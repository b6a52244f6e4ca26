package music

import (
	"fmt"
	"strings"
	"time"

	"jellycord/internal/playlist"
	"jellycord/pkg/util"

	"github.com/bwmarrin/discordgo"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	progressWidth  = 18
	trackNameWidth = 34
)

func notice(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description}
}

// trackEmbed shows one track with artwork and progress.
func trackEmbed(title string, t playlist.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("**%s**\n%s", t.Name, progressLine(t)),
	}
	if img, ok := t.PrimaryImage(); ok {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: img}
	}
	return embed
}

func progressLine(t playlist.Track) string {
	return fmt.Sprintf("`%s` %s `%s`",
		util.FormatDuration(t.PlaybackProgress),
		util.ProgressBar(t.PlaybackProgress, t.Duration, progressWidth),
		util.FormatDuration(t.Duration))
}

// enqueuedEmbed describes the result of queueing tracks.
func enqueuedEmbed(added []playlist.Track, playNext bool, snap playlist.Snapshot) *discordgo.MessageEmbed {
	if len(added) == 0 {
		return notice("🎵 Nothing queued", "No playable tracks were found.")
	}

	where := "to the end of the playlist"
	if playNext {
		where = "to play next"
	}

	var total time.Duration
	for _, t := range added {
		total += t.Duration
	}

	var desc string
	if len(added) == 1 {
		desc = fmt.Sprintf("**%s** (%s) added %s.", added[0].Name, util.FormatDuration(total), where)
	} else {
		desc = fmt.Sprintf("**%d tracks** (%s) added %s.", len(added), util.FormatDuration(total), where)
	}

	embed := notice("🎵 Queued", desc)
	if active, ok := snap.ActiveTrack(); ok {
		embed.Fields = []*discordgo.MessageEmbedField{{Name: "Now playing", Value: active.Name}}
		if img, ok := active.PrimaryImage(); ok {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: img}
		}
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d tracks in the playlist", len(snap.Tracks))}
	return embed
}

// renderPlaylist draws one page of a playlist as a table.
func renderPlaylist(snap playlist.Snapshot, page, size int, paused bool) (*discordgo.MessageEmbed, int, int) {
	if len(snap.Tracks) == 0 {
		return notice("📜 Playlist", "The playlist is empty."), 0, 0
	}

	tracks, pages := snap.Page(page, size)
	page = min(max(page, 0), pages-1)
	activeIdx, hasActive := snap.Active.Index()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"", "#", "Track", "Length"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: trackNameWidth, WidthMaxEnforcer: text.Trim},
		{Number: 4, Align: text.AlignRight},
	})

	for i, t := range tracks {
		idx := page*size + i
		marker := ""
		if hasActive && idx == activeIdx {
			marker = "▶"
			if paused || !t.Playing {
				marker = "⏸"
			}
		}
		tw.AppendRow(table.Row{marker, idx + 1, t.Name, util.FormatDuration(t.Duration)})
	}

	var b strings.Builder
	if active, ok := snap.ActiveTrack(); ok {
		fmt.Fprintf(&b, "**%s**\n%s\n", active.Name, progressLine(active))
	}
	b.WriteString("```\n")
	b.WriteString(tw.Render())
	b.WriteString("\n```")

	var total time.Duration
	for _, t := range snap.Tracks {
		total += t.Duration
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📜 Playlist",
		Description: b.String(),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d · %d tracks · %s", page+1, pages, len(snap.Tracks), util.FormatDuration(total)),
		},
	}
	return embed, page, pages
}
