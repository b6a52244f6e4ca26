package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrMissingVoicePermission is returned when the bot may not connect to or
// speak in a voice channel.
var ErrMissingVoicePermission = errors.New("missing permission to connect or speak")

const voicePermissions = discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak

func hasVoicePermissions(perms int64) bool {
	return perms&discordgo.PermissionAdministrator != 0 || perms&voicePermissions == voicePermissions
}

// checkVoicePermissions reports whether the bot can play audio in a channel.
func checkVoicePermissions(s *discordgo.Session, channelID string) error {
	perms, err := s.State.UserChannelPermissions(s.State.User.ID, channelID)
	if err != nil {
		perms, err = s.UserChannelPermissions(s.State.User.ID, channelID)
		if err != nil {
			return err
		}
	}
	if !hasVoicePermissions(perms) {
		return ErrMissingVoicePermission
	}
	return nil
}
