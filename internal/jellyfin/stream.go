package jellyfin

import (
	"net/url"
	"strconv"
)

// StreamURL returns a URL that serves the audio of id, transcoded by the
// server when the source exceeds the bitrate cap. The token rides in the
// query because ffmpeg cannot send the auth header.
func (c *Client) StreamURL(id string) string {
	q := url.Values{}
	q.Set("UserId", c.userID)
	q.Set("DeviceId", c.deviceID)
	q.Set("Container", "opus,webm|opus,mp3,aac,m4a|aac,flac,ogg")
	q.Set("TranscodingContainer", "ts")
	q.Set("TranscodingProtocol", "http")
	q.Set("AudioCodec", "aac")
	if c.maxBitrate > 0 {
		q.Set("MaxStreamingBitrate", strconv.Itoa(c.maxBitrate))
	}
	q.Set("api_key", c.token)
	return c.endpoint("/Audio/"+url.PathEscape(id)+"/universal", q)
}
