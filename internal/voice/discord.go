package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"layeh.com/gopus"
)

// ErrNotConnected is returned when the bot is not in a voice channel.
var ErrNotConnected = errors.New("not connected to a voice channel")

// FrameSink receives encoded Opus frames.
type FrameSink interface {
	Speaking(on bool) error
	Send(ctx context.Context, frame []byte) error
}

// Encoder turns one PCM frame into an Opus packet.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

type opusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder creates a gopus encoder for 48kHz stereo.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

func (o *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	return o.enc.Encode(pcm, frameSize, frameSize*channels*2)
}

// Connection is the voice connection of one guild.
type Connection struct {
	mu      sync.Mutex
	dg      *discordgo.Session
	guildID string
	vc      *discordgo.VoiceConnection
	log     *logrus.Entry
}

// NewConnection creates a not yet joined connection.
func NewConnection(dg *discordgo.Session, guildID string, log *logrus.Entry) *Connection {
	return &Connection{dg: dg, guildID: guildID, log: log.WithField("component", "voice")}
}

// Join connects to channelID, reusing the current connection when it is
// already there.
func (c *Connection) Join(channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil && c.vc.ChannelID == channelID {
		return nil
	}

	vc, err := c.dg.ChannelVoiceJoin(c.guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	c.vc = vc
	c.log.WithField("channel", channelID).Info("Joined voice channel")
	return nil
}

// ChannelID returns the joined channel, or "".
func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}

// Leave disconnects from voice.
func (c *Connection) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return ErrNotConnected
	}
	err := c.vc.Disconnect()
	c.vc = nil
	return err
}

// Sink returns the frame sink of the joined channel.
func (c *Connection) Sink() (FrameSink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil, ErrNotConnected
	}
	return discordSink{vc: c.vc}, nil
}

type discordSink struct {
	vc *discordgo.VoiceConnection
}

func (s discordSink) Speaking(on bool) error {
	return s.vc.Speaking(on)
}

func (s discordSink) Send(ctx context.Context, frame []byte) error {
	t := time.NewTimer(time.Second)
	defer t.Stop()
	select {
	case s.vc.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errors.New("voice send timed out")
	}
}
