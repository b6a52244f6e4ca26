package discord

import (
	"context"
	"fmt"

	"jellycord/internal/command"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// commandAPI is the part of discordgo.Session used to manage guild commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, c *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// commandSync registers the registry's slash commands with a guild, deleting
// obsolete ones and re-creating only those whose definition changed since the
// last sync.
type commandSync struct {
	api     commandAPI
	cache   commandCache
	limiter *rate.Limiter
	log     *logrus.Entry
}

func newCommandSync(api commandAPI, cacheDir string, log *logrus.Entry) *commandSync {
	return &commandSync{
		api:     api,
		cache:   commandCache{dir: cacheDir},
		limiter: rate.NewLimiter(rate.Limit(40), 1),
		log:     log,
	}
}

func definitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.All() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (cs *commandSync) sync(ctx context.Context, appID, guildID string, defs []*discordgo.ApplicationCommand) error {
	log := cs.log.WithField("guild", guildID)

	remote, err := cs.api.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list guild commands: %w", err)
	}
	hashes, err := cs.cache.load(guildID)
	if err != nil {
		log.WithError(err).Warn("Command cache unreadable, registering everything")
	}

	wanted := make(map[string]string, len(defs))
	for _, d := range defs {
		wanted[d.Name] = hashCommand(d)
	}
	registered := make(map[string]bool, len(remote))
	for _, rc := range remote {
		registered[rc.Name] = true
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		if err := cs.wait(ctx); err != nil {
			return err
		}
		if err := cs.api.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.WithError(err).WithField("command", rc.Name).Error("Failed to delete obsolete command")
			continue
		}
		delete(hashes, rc.Name)
		log.WithField("command", rc.Name).Info("Deleted obsolete command")
	}

	var changed int
	for _, d := range defs {
		h := wanted[d.Name]
		if hashes[d.Name] == h && registered[d.Name] {
			continue
		}
		if err := cs.wait(ctx); err != nil {
			return err
		}
		if _, err := cs.api.ApplicationCommandCreate(appID, guildID, d); err != nil {
			log.WithError(err).WithField("command", d.Name).Error("Failed to register command")
			continue
		}
		hashes[d.Name] = h
		changed++
	}
	if changed > 0 {
		log.WithField("count", changed).Info("Registered changed commands")
	}

	return cs.cache.save(guildID, hashes)
}

func (cs *commandSync) wait(ctx context.Context) error {
	if err := cs.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("command sync interrupted: %w", err)
	}
	return nil
}
