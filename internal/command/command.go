// Package command adapts Discord commands to the generic pkg/cmd core and
// holds what commands share: interaction contexts, middlewares and
// response helpers.
package command

import (
	"context"
	"errors"

	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// ErrWrongContext is returned when a command is run with a context it does
// not handle.
var ErrWrongContext = errors.New("wrong context type")

// SlashContext is passed to slash commands.
type SlashContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Log     *logrus.Entry
}

// ComponentContext is passed to button and select handlers.
type ComponentContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Log     *logrus.Entry
}

// SlashProvider describes how a command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentHandler handles components whose custom id starts with the
// command name followed by ':'.
type ComponentHandler interface {
	Component(ctx *ComponentContext) error
}

// Meta is read by /help and middlewares.
type Meta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx any) error
}

// Adapter lets a DiscordCommand live in a cmd.Registry.
type Adapter struct {
	Cmd DiscordCommand
}

func (a *Adapter) Name() string        { return a.Cmd.Name() }
func (a *Adapter) Description() string { return a.Cmd.Description() }
func (a *Adapter) Group() string       { return a.Cmd.Group() }
func (a *Adapter) Category() string    { return a.Cmd.Category() }

func (a *Adapter) Run(_ context.Context, inv *cmd.Invocation) error {
	if cc, ok := inv.Data.(*ComponentContext); ok {
		if h, ok := a.Cmd.(ComponentHandler); ok {
			return h.Component(cc)
		}
		return ErrWrongContext
	}
	return a.Cmd.Run(inv.Data)
}

func (a *Adapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// Register adds c to reg wrapped in mws.
func Register(reg *cmd.Registry, c DiscordCommand, mws ...cmd.Middleware) {
	reg.Register(cmd.Apply(&Adapter{Cmd: c}, mws...))
}

// Definition returns the slash definition of a registered command.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// MetaOf returns the group and category of a registered command.
func MetaOf(c cmd.Command) (group, category string) {
	if m, ok := cmd.Root(c).(Meta); ok {
		return m.Group(), m.Category()
	}
	return "", ""
}

// HandlesComponents reports whether c accepts component interactions.
func HandlesComponents(c cmd.Command) bool {
	a, ok := cmd.Root(c).(*Adapter)
	if !ok {
		return false
	}
	_, ok = a.Cmd.(ComponentHandler)
	return ok
}

// interactionOf extracts the interaction from a Discord context.
func interactionOf(data any) (*discordgo.Session, *discordgo.InteractionCreate, *logrus.Entry, bool) {
	switch v := data.(type) {
	case *SlashContext:
		return v.Session, v.Event, v.Log, true
	case *ComponentContext:
		return v.Session, v.Event, v.Log, true
	}
	return nil, nil, nil, false
}

// InteractionUser returns the user behind an interaction in or outside a guild.
func InteractionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	return e.User
}
