// Package discord connects the command registry to the Discord gateway.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"jellycord/internal/command/music"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Options configure a Bot.
type Options struct {
	Token             string
	InitSlashCommands bool
	CommandCachePath  string
	Registry          *cmd.Registry
	Log               *logrus.Entry
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	registry *cmd.Registry
	commands *commandSync
	initCmds bool
	log      *logrus.Entry

	mu  sync.RWMutex
	ctx context.Context
}

// New creates the gateway session without connecting it.
func New(opts Options) (*Bot, error) {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	log := opts.Log.WithField("component", "discord")
	b := &Bot{
		dg:       dg,
		registry: opts.Registry,
		commands: newCommandSync(dg, opts.CommandCachePath, log),
		initCmds: opts.InitSlashCommands,
		log:      log,
		ctx:      context.Background(),
	}
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	return b, nil
}

// Session is the underlying gateway session, used for voice connections.
func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

// Run connects and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	<-ctx.Done()
	b.log.Info("Shutdown signal received, closing gateway")
	return b.dg.Close()
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.WithFields(logrus.Fields{"user": r.User.Username, "guilds": len(r.Guilds)}).Info("Discord bot is running")
	if !b.initCmds {
		b.log.Info("Registering slash commands skipped")
	}
}

// onGuildCreate fires for every guild on connect and when the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if !b.initCmds {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.WithError(err).WithField("guild", g.ID).Error("Failed to register slash commands")
	}
}

func (b *Bot) registerCommands(guildID string) error {
	var appID string
	if b.dg.State.User != nil {
		appID = b.dg.State.User.ID
	}
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}
	return b.commands.sync(b.context(), appID, guildID, definitions(b.registry))
}

// UserVoiceChannel returns the voice channel a member is in, provided the bot
// may play there.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	vs, err := b.dg.State.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) || (err == nil && vs.ChannelID == "") {
		return "", music.ErrNotInVoice
	}
	if err != nil {
		return "", fmt.Errorf("voice state: %w", err)
	}
	if err := checkVoicePermissions(b.dg, vs.ChannelID); err != nil {
		return "", fmt.Errorf("channel %s: %w", vs.ChannelID, err)
	}
	return vs.ChannelID, nil
}
