package command

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
)

// Options indexes the top-level options of a slash command by name.
func Options(e *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	if e.Type != discordgo.InteractionApplicationCommand {
		return out
	}
	for _, opt := range e.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

// Args renders slash options as sorted name=value pairs for logging, or
// the custom id for components.
func Args(e *discordgo.InteractionCreate) []string {
	switch e.Type {
	case discordgo.InteractionMessageComponent:
		return []string{e.MessageComponentData().CustomID}
	case discordgo.InteractionApplicationCommand:
		var args []string
		for name, opt := range Options(e) {
			args = append(args, fmt.Sprintf("%s=%v", name, opt.Value))
		}
		sort.Strings(args)
		return args
	}
	return nil
}
