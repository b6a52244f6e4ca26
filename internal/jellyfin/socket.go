package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"jellycord/internal/playlist"
	"jellycord/internal/remote"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

// ResolveTrack looks an audio item up and converts it for the playlist.
func (c *Client) ResolveTrack(ctx context.Context, id string) (playlist.Track, error) {
	item, err := c.Item(ctx, id)
	if err != nil {
		return playlist.Track{}, err
	}
	if item.Type != KindAudio {
		return playlist.Track{}, fmt.Errorf("item %s is a %s, not a track", id, item.Type)
	}
	return c.Track(item), nil
}

// RemoteCommands executes decoded remote-control messages.
type RemoteCommands interface {
	Play(ctx context.Context, req remote.PlayRequest) (int, error)
	Playstate(ctx context.Context, cmd remote.PlaystateCommand) error
	SetVolume(ctx context.Context, percent int) error
}

type message struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

type playstatePayload struct {
	Command remote.PlaystateCommand `json:"Command"`
}

type generalCommand struct {
	Name      string            `json:"Name"`
	Arguments map[string]string `json:"Arguments"`
}

const defaultKeepAlive = 30 * time.Second

// Socket keeps the remote-control websocket open and feeds its commands to
// a RemoteCommands implementation.
type Socket struct {
	client   *Client
	commands RemoteCommands
	dialer   *websocket.Dialer
	backoff  *backoff.Backoff
	log      *logrus.Entry
}

// NewSocket creates a socket for client.
func NewSocket(client *Client, commands RemoteCommands, log *logrus.Entry) *Socket {
	if log == nil {
		log = client.log
	}
	return &Socket{
		client:   client,
		commands: commands,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		},
		log: log.WithField("component", "socket"),
	}
}

// URL is the websocket endpoint of the server.
func (s *Socket) URL() string {
	u := *s.client.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket"
	q := url.Values{}
	q.Set("api_key", s.client.token)
	q.Set("deviceId", s.client.deviceID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Run connects and reconnects until ctx is done.
func (s *Socket) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := s.backoff.Duration()
		s.log.WithError(err).WithField("retry_in", wait).Warn("Remote control socket disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (s *Socket) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.URL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := s.client.ReportCapabilities(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to report capabilities")
	}
	s.backoff.Reset()
	s.log.Info("Remote control socket connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	write := func(m message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}

	keepAlive := make(chan time.Duration, 1)
	go s.keepAlive(ctx, write, keepAlive)
	go func() {
		<-ctx.Done()
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		conn.Close()
	}()

	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if m.MessageType == "ForceKeepAlive" {
			select {
			case keepAlive <- keepAliveInterval(m.Data):
			default:
			}
			continue
		}
		if err := s.handle(ctx, m); err != nil {
			s.log.WithError(err).WithField("type", m.MessageType).Warn("Remote command failed")
		}
	}
}

func (s *Socket) keepAlive(ctx context.Context, write func(message) error, intervals <-chan time.Duration) {
	ticker := time.NewTicker(defaultKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-intervals:
			ticker.Reset(d)
			if err := write(message{MessageType: "KeepAlive"}); err != nil {
				s.log.WithError(err).Debug("Keepalive failed")
			}
		case <-ticker.C:
			if err := write(message{MessageType: "KeepAlive"}); err != nil {
				s.log.WithError(err).Debug("Keepalive failed")
			}
		}
	}
}

// keepAliveInterval halves the server timeout carried by ForceKeepAlive.
func keepAliveInterval(data json.RawMessage) time.Duration {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil || seconds <= 1 {
		return defaultKeepAlive
	}
	return time.Duration(seconds * float64(time.Second) / 2)
}

func (s *Socket) handle(ctx context.Context, m message) error {
	log := s.log.WithField("type", m.MessageType)

	switch m.MessageType {
	case "KeepAlive":
		return nil
	case "Play":
		var req remote.PlayRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			return fmt.Errorf("decode play: %w", err)
		}
		log.WithFields(logrus.Fields{"items": len(req.Selection.IDs()), "command": req.Command}).Info("Remote play")
		_, err := s.commands.Play(ctx, req)
		return err
	case "Playstate":
		var p playstatePayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			return fmt.Errorf("decode playstate: %w", err)
		}
		log.WithField("command", p.Command).Debug("Remote playstate")
		return s.commands.Playstate(ctx, p.Command)
	case "GeneralCommand":
		var g generalCommand
		if err := json.Unmarshal(m.Data, &g); err != nil {
			return fmt.Errorf("decode general command: %w", err)
		}
		return s.general(ctx, g)
	default:
		log.Debug("Ignoring socket message")
		return nil
	}
}

func (s *Socket) general(ctx context.Context, g generalCommand) error {
	switch g.Name {
	case "SetVolume":
		v, err := strconv.Atoi(g.Arguments["Volume"])
		if err != nil {
			return fmt.Errorf("volume %q: %w", g.Arguments["Volume"], err)
		}
		return s.commands.SetVolume(ctx, v)
	case "Mute":
		return s.commands.SetVolume(ctx, 0)
	default:
		s.log.WithField("command", g.Name).Debug("Ignoring general command")
		return nil
	}
}
