// Package core holds the informational commands.
package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"jellycord/internal/command"
	"jellycord/internal/config"
	"jellycord/internal/storage"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const (
	group    = "core"
	category = "🕯️ Information"

	discordMaxMessageLength = 2000
)

// HistoryReader returns a guild's recent commands, oldest first.
type HistoryReader interface {
	CommandsHistory(guildID string) ([]storage.CommandHistory, error)
}

// Register adds the informational commands to reg.
func Register(reg *cmd.Registry, history HistoryReader, mws ...cmd.Middleware) {
	command.Register(reg, &HelpCommand{Registry: reg}, mws...)
	command.Register(reg, &PingCommand{}, mws...)
	command.Register(reg, &HistoryCommand{History: history}, mws...)
}

type HelpCommand struct {
	Registry *cmd.Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a list of available commands" }
func (c *HelpCommand) Group() string       { return group }
func (c *HelpCommand) Category() string    { return category }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "view_as",
				Description: "View commands as categories or a flat list",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Categories", Value: "category"},
					{Name: "Flat list", Value: "flat"},
				},
			},
		},
	}
}

func (c *HelpCommand) Run(ctx any) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return command.ErrWrongContext
	}

	var output string
	if o, ok := command.Options(sc.Event)["view_as"]; ok && o.StringValue() == "flat" {
		output = helpFlat(c.Registry.All())
	} else {
		output = helpByCategory(c.Registry.All())
	}

	return command.RespondEmbedEphemeral(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Title:       "Jellycord Help",
		Description: output,
	})
}

func helpByCategory(all []cmd.Command) string {
	byCategory := make(map[string][]cmd.Command)
	for _, c := range all {
		_, cat := command.MetaOf(c)
		byCategory[cat] = append(byCategory[cat], c)
	}

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := weight(cats[i]), weight(cats[j])
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	var sb strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		for _, c := range byCategory[cat] {
			fmt.Fprintf(&sb, "`/%s` - %s\n", c.Name(), c.Description())
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func helpFlat(all []cmd.Command) string {
	var sb strings.Builder
	for _, c := range all {
		fmt.Fprintf(&sb, "`/%s` - %s\n", c.Name(), c.Description())
	}
	return strings.TrimSpace(sb.String())
}

// weight places unknown categories last.
func weight(cat string) int {
	if w, ok := config.CategoryWeights[cat]; ok {
		return w
	}
	return 1 << 20
}

type PingCommand struct{}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check bot latency" }
func (c *PingCommand) Group() string       { return group }
func (c *PingCommand) Category() string    { return category }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *PingCommand) Run(ctx any) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return command.ErrWrongContext
	}
	latency := sc.Session.HeartbeatLatency().Milliseconds()
	return command.RespondEmbedEphemeral(sc.Session, sc.Event, &discordgo.MessageEmbed{
		Title:       "Pong!",
		Description: fmt.Sprintf("Latency: %dms", latency),
	})
}

type HistoryCommand struct {
	History HistoryReader
}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Review recently used commands" }
func (c *HistoryCommand) Group() string       { return group }
func (c *HistoryCommand) Category() string    { return category }

func (c *HistoryCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *HistoryCommand) Run(ctx any) error {
	sc, ok := ctx.(*command.SlashContext)
	if !ok {
		return command.ErrWrongContext
	}
	s, e := sc.Session, sc.Event

	records, err := c.History.CommandsHistory(e.GuildID)
	if err != nil {
		_ = command.RespondEmbedEphemeral(s, e, command.ErrorEmbed("Could not read the command history."))
		return err
	}
	if len(records) == 0 {
		return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "No commands recorded yet."})
	}
	return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       "Recent commands",
		Description: historyBlock(records),
	})
}

// historyBlock lists records newest first, dropping the oldest lines when
// the block would not fit a message.
func historyBlock(records []storage.CommandHistory) string {
	const open, closing = "```md\n", "```"
	budget := discordMaxMessageLength - len(open) - len(closing)

	var lines []string
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		line := fmt.Sprintf("%s  %-16s /%s", r.Datetime.UTC().Format(time.DateTime), r.Username, r.Command)
		if r.Param != "" {
			line += " " + r.Param
		}
		line += "\n"
		if len(line) > budget {
			break
		}
		budget -= len(line)
		lines = append(lines, line)
	}
	return open + strings.Join(lines, "") + closing
}
