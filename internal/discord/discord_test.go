package discord

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"jellycord/internal/command"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slashOnly struct{ name string }

func (c *slashOnly) Name() string        { return c.name }
func (c *slashOnly) Description() string { return "slash " + c.name }
func (c *slashOnly) Group() string       { return "test" }
func (c *slashOnly) Category() string    { return "test" }
func (c *slashOnly) Run(any) error       { return nil }

func (c *slashOnly) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.name, Description: c.Description()}
}

type withButtons struct{ slashOnly }

func (c *withButtons) Component(*command.ComponentContext) error { return nil }

func testRegistry() *cmd.Registry {
	reg := cmd.NewRegistry()
	command.Register(reg, &slashOnly{name: "play"})
	command.Register(reg, &withButtons{slashOnly{name: "playlist"}})
	return reg
}

func slashEvent(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Data:    discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func componentEvent(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "g1",
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func TestRoute(t *testing.T) {
	reg := testRegistry()

	c, ok := route(reg, slashEvent("play"))
	require.True(t, ok)
	assert.Equal(t, "play", c.Name())

	c, ok = route(reg, componentEvent("playlist:next:abc"))
	require.True(t, ok)
	assert.Equal(t, "playlist", c.Name())

	_, ok = route(reg, componentEvent("play:next:abc"))
	assert.False(t, ok, "play has no component handler")

	_, ok = route(reg, slashEvent("missing"))
	assert.False(t, ok)
}

func TestInvocationContext(t *testing.T) {
	log := logrus.NewEntry(logrus.New())

	inv := invocation(context.Background(), nil, componentEvent("playlist:prev:x"), log)
	cc, ok := inv.Data.(*command.ComponentContext)
	require.True(t, ok)
	assert.Equal(t, "g1", cc.Event.GuildID)
	assert.Equal(t, []string{"playlist:prev:x"}, inv.Args)

	inv = invocation(context.Background(), nil, slashEvent("play"), log)
	_, ok = inv.Data.(*command.SlashContext)
	assert.True(t, ok)
}

func TestHashIgnoresOptionOrder(t *testing.T) {
	a := &discordgo.ApplicationCommand{Name: "play", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "query", Type: discordgo.ApplicationCommandOptionString},
		{Name: "next", Type: discordgo.ApplicationCommandOptionBoolean},
	}}
	b := &discordgo.ApplicationCommand{Name: "play", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "next", Type: discordgo.ApplicationCommandOptionBoolean},
		{Name: "query", Type: discordgo.ApplicationCommandOptionString},
	}}
	assert.Equal(t, hashCommand(a), hashCommand(b))

	b.Description = "changed"
	assert.NotEqual(t, hashCommand(a), hashCommand(b))
}

type fakeAPI struct {
	mu       sync.Mutex
	remote   []*discordgo.ApplicationCommand
	created  []string
	deleted  []string
	failList bool
}

func (f *fakeAPI) ApplicationCommands(_, _ string, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	if f.failList {
		return nil, errors.New("unavailable")
	}
	return f.remote, nil
}

func (f *fakeAPI) ApplicationCommandCreate(_, _ string, c *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c.Name)
	return c, nil
}

func (f *fakeAPI) ApplicationCommandDelete(_, _, id string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func TestCommandSync(t *testing.T) {
	dir := t.TempDir()
	api := &fakeAPI{remote: []*discordgo.ApplicationCommand{
		{ID: "1", Name: "play"},
		{ID: "2", Name: "skip"},
	}}
	cs := newCommandSync(api, dir, logrus.NewEntry(logrus.New()))
	defs := definitions(testRegistry())

	require.NoError(t, cs.sync(context.Background(), "app", "g1", defs))
	assert.Equal(t, []string{"2"}, api.deleted)
	assert.ElementsMatch(t, []string{"play", "playlist"}, api.created)

	_, err := os.Stat(filepath.Join(dir, "g1.json"))
	require.NoError(t, err)

	// nothing changed since the last sync
	api.remote = []*discordgo.ApplicationCommand{{ID: "1", Name: "play"}, {ID: "3", Name: "playlist"}}
	api.created, api.deleted = nil, nil
	require.NoError(t, cs.sync(context.Background(), "app", "g1", defs))
	assert.Empty(t, api.created)
	assert.Empty(t, api.deleted)

	// removed on Discord's side although cached
	api.remote = api.remote[:1]
	require.NoError(t, cs.sync(context.Background(), "app", "g1", defs))
	assert.Equal(t, []string{"playlist"}, api.created)
}

func TestCommandSyncListFailure(t *testing.T) {
	cs := newCommandSync(&fakeAPI{failList: true}, t.TempDir(), logrus.NewEntry(logrus.New()))
	assert.Error(t, cs.sync(context.Background(), "app", "g1", nil))
}

func TestCommandCacheCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g1.json"), []byte("{"), 0o644))

	hashes, err := commandCache{dir: dir}.load("g1")
	assert.Error(t, err)
	assert.Empty(t, hashes)

	hashes, err = commandCache{dir: dir}.load("other")
	assert.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestVoicePermissions(t *testing.T) {
	assert.True(t, hasVoicePermissions(discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak))
	assert.True(t, hasVoicePermissions(discordgo.PermissionAdministrator))
	assert.False(t, hasVoicePermissions(discordgo.PermissionVoiceConnect))
	assert.False(t, hasVoicePermissions(0))
}
