package main

import (
	"bytes"
	"strings"
	"testing"

	"jellycord/internal/command/music"
	"jellycord/internal/config"
	"jellycord/pkg/cmd"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintCommandsMarkdown(t *testing.T) {
	reg := cmd.NewRegistry()
	registerCommands(reg, nil, &music.Player{})

	var buf bytes.Buffer
	printCommands(&buf, reg, true)
	out := buf.String()

	assert.True(t, strings.HasPrefix(strings.ToLower(out), "| category | command | description |"))
	for _, name := range []string{"/help", "/play", "/playlist", "/radio", "/disconnect"} {
		assert.Contains(t, out, "| "+name+" |")
	}
	assert.Less(t, strings.Index(out, "/help"), strings.Index(out, "/play "))
}

func TestPrintConfigMasksSecrets(t *testing.T) {
	cfg, err := config.Parse(env.Options{Environment: map[string]string{
		"DISCORD_TOKEN":    "discord-secret-token",
		"JELLYFIN_URL":     "http://jellyfin:8096",
		"JELLYFIN_TOKEN":   "jellyfin-secret",
		"JELLYFIN_USER_ID": "user",
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	printConfig(&buf, cfg)
	out := buf.String()

	assert.Contains(t, out, "JELLYFIN_URL")
	assert.Contains(t, out, "http://jellyfin:8096")
	assert.NotContains(t, out, "discord-secret-token")
	assert.NotContains(t, out, "jellyfin-secret")
}
