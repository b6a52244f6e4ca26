package command

import (
	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0x00a4dc

// RespondEmbed sends a public embed as the interaction response.
func RespondEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{withColor(embed)},
			Components: components,
		},
	})
}

// RespondEmbedEphemeral sends an embed only the caller sees.
func RespondEmbedEphemeral(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{withColor(embed)},
		},
	})
}

// RespondDeferred acknowledges an interaction whose answer takes a while.
func RespondDeferred(s *discordgo.Session, e *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

// RespondUpdate acknowledges a component by editing the message it sits on.
func RespondUpdate(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{withColor(embed)},
			Components: components,
		},
	})
}

// EditEmbed replaces the original response of a deferred interaction.
func EditEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) error {
	embeds := []*discordgo.MessageEmbed{withColor(embed)}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := s.InteractionResponseEdit(e.Interaction, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

// FollowupEmbed sends another message after the response.
func FollowupEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{withColor(embed)}}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := s.FollowupMessageCreate(e.Interaction, true, params)
	return err
}

// ErrorEmbed is the opaque failure message users see; details go to the log.
func ErrorEmbed(what string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⚠️ Something went wrong",
		Description: what + "\nPlease report this if it keeps happening.",
	}
}

func withColor(embed *discordgo.MessageEmbed) *discordgo.MessageEmbed {
	if embed.Color == 0 {
		embed.Color = EmbedColor
	}
	return embed
}
