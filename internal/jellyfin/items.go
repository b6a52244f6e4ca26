package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jellycord/internal/playlist"

	"github.com/samber/lo"
)

// ItemKind is the Jellyfin BaseItemKind of a catalog item.
type ItemKind string

const (
	KindAudio  ItemKind = "Audio"
	KindAlbum  ItemKind = "MusicAlbum"
	KindList   ItemKind = "Playlist"
	KindArtist ItemKind = "MusicArtist"
)

// ParseKind maps user-facing names (track, album, playlist, artist) to kinds.
func ParseKind(s string) (ItemKind, bool) {
	switch strings.ToLower(s) {
	case "track", "song", "audio":
		return KindAudio, true
	case "album":
		return KindAlbum, true
	case "playlist":
		return KindList, true
	case "artist":
		return KindArtist, true
	}
	return "", false
}

// Ticks converts a duration to Jellyfin ticks of 100ns.
func Ticks(d time.Duration) int64 {
	return int64(d / 100)
}

// FromTicks converts Jellyfin ticks to a duration.
func FromTicks(ticks int64) time.Duration {
	return time.Duration(ticks) * 100
}

// Item is the subset of BaseItemDto the bot uses.
type Item struct {
	ID                   string            `json:"Id"`
	Name                 string            `json:"Name"`
	Type                 ItemKind          `json:"Type"`
	RunTimeTicks         int64             `json:"RunTimeTicks"`
	Album                string            `json:"Album,omitempty"`
	AlbumID              string            `json:"AlbumId,omitempty"`
	AlbumArtist          string            `json:"AlbumArtist,omitempty"`
	Artists              []string          `json:"Artists,omitempty"`
	ImageTags            map[string]string `json:"ImageTags,omitempty"`
	AlbumPrimaryImageTag string            `json:"AlbumPrimaryImageTag,omitempty"`
	ChildCount           int               `json:"ChildCount,omitempty"`
}

// Duration is the item runtime.
func (i Item) Duration() time.Duration {
	return FromTicks(i.RunTimeTicks)
}

// DisplayName renders "Artist - Name" when an artist is known.
func (i Item) DisplayName() string {
	artist := i.AlbumArtist
	if len(i.Artists) > 0 {
		artist = strings.Join(i.Artists, ", ")
	}
	if artist == "" || i.Type != KindAudio {
		return i.Name
	}
	return artist + " - " + i.Name
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

const itemFields = "ImageTags,Artists,AlbumArtist,ChildCount"

// Search finds items whose name matches query, restricted to kinds when given.
func (c *Client) Search(ctx context.Context, query string, limit int, kinds ...ItemKind) ([]Item, error) {
	if len(kinds) == 0 {
		kinds = []ItemKind{KindAudio, KindAlbum, KindList, KindArtist}
	}
	q := url.Values{}
	q.Set("searchTerm", query)
	q.Set("IncludeItemTypes", joinKinds(kinds))
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)
	q.Set("Limit", strconv.Itoa(max(limit, 1)))

	items, err := c.list(ctx, "/Users/"+c.userID+"/Items", q)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return items, nil
}

// Item looks up one item by id. Results are cached for the configured TTL.
func (c *Client) Item(ctx context.Context, id string) (Item, error) {
	if item, ok := c.items.Get(id); ok {
		return item, nil
	}

	var item Item
	if err := c.do(ctx, http.MethodGet, "/Users/"+c.userID+"/Items/"+url.PathEscape(id), nil, nil, &item); err != nil {
		return Item{}, fmt.Errorf("item %s: %w", id, err)
	}
	c.items.Add(id, item)
	return item, nil
}

// Tracks expands an item into playable audio items in catalog order. Audio
// items expand to themselves.
func (c *Client) Tracks(ctx context.Context, item Item) ([]Item, error) {
	q := url.Values{}
	q.Set("IncludeItemTypes", string(KindAudio))
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)

	var (
		items []Item
		err   error
	)
	switch item.Type {
	case KindAudio:
		return []Item{item}, nil
	case KindAlbum:
		q.Set("ParentId", item.ID)
		q.Set("SortBy", "ParentIndexNumber,IndexNumber,SortName")
		items, err = c.list(ctx, "/Users/"+c.userID+"/Items", q)
	case KindArtist:
		q.Set("ArtistIds", item.ID)
		q.Set("SortBy", "ProductionYear,Album,ParentIndexNumber,IndexNumber")
		items, err = c.list(ctx, "/Users/"+c.userID+"/Items", q)
	case KindList:
		q.Set("UserId", c.userID)
		items, err = c.list(ctx, "/Playlists/"+url.PathEscape(item.ID)+"/Items", q)
	default:
		return nil, fmt.Errorf("item %s: unsupported type %q", item.ID, item.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("expand %s %s: %w", item.Type, item.ID, err)
	}

	for _, it := range items {
		c.items.Add(it.ID, it)
	}
	return lo.Filter(items, func(it Item, _ int) bool { return it.Type == KindAudio }), nil
}

// RandomTracks returns up to n random audio items from the library.
func (c *Client) RandomTracks(ctx context.Context, n int) ([]Item, error) {
	q := url.Values{}
	q.Set("IncludeItemTypes", string(KindAudio))
	q.Set("Recursive", "true")
	q.Set("SortBy", "Random")
	q.Set("Fields", itemFields)
	q.Set("Limit", strconv.Itoa(max(n, 1)))

	items, err := c.list(ctx, "/Users/"+c.userID+"/Items", q)
	if err != nil {
		return nil, fmt.Errorf("random tracks: %w", err)
	}
	return items, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]Item, error) {
	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Track converts an audio item into a playlist track with its artwork.
func (c *Client) Track(item Item) playlist.Track {
	var images []playlist.RemoteImage
	if tag, ok := item.ImageTags["Primary"]; ok {
		images = append(images, playlist.RemoteImage{Type: "Primary", URL: c.imageURL(item.ID, tag)})
	}
	if item.AlbumID != "" && item.AlbumPrimaryImageTag != "" {
		images = append(images, playlist.RemoteImage{Type: "Album", URL: c.imageURL(item.AlbumID, item.AlbumPrimaryImageTag)})
	}
	return playlist.NewTrack(item.ID, item.DisplayName(), item.Duration(), images...)
}

// TracksOf maps items to playlist tracks, keeping order.
func (c *Client) TracksOf(items []Item) []playlist.Track {
	return lo.Map(items, func(it Item, _ int) playlist.Track { return c.Track(it) })
}

func (c *Client) imageURL(id, tag string) string {
	q := url.Values{}
	q.Set("tag", tag)
	q.Set("quality", "90")
	return c.endpoint("/Items/"+url.PathEscape(id)+"/Images/Primary", q)
}

func joinKinds(kinds []ItemKind) string {
	return strings.Join(lo.Map(kinds, func(k ItemKind, _ int) string { return string(k) }), ",")
}

// RadioTracks returns n random library tracks ready for the playlist.
func (c *Client) RadioTracks(ctx context.Context, n int) ([]playlist.Track, error) {
	items, err := c.RandomTracks(ctx, n)
	if err != nil {
		return nil, err
	}
	return c.TracksOf(items), nil
}
