package command

import (
	"context"
	"testing"

	"jellycord/internal/storage"
	"jellycord/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct {
	slashRuns     int
	componentRuns int
}

func (c *pingCommand) Name() string        { return "ping" }
func (c *pingCommand) Description() string { return "Check the bot" }
func (c *pingCommand) Group() string       { return "core" }
func (c *pingCommand) Category() string    { return "🕯️ Information" }

func (c *pingCommand) Run(ctx any) error {
	if _, ok := ctx.(*SlashContext); !ok {
		return ErrWrongContext
	}
	c.slashRuns++
	return nil
}

func (c *pingCommand) Component(*ComponentContext) error {
	c.componentRuns++
	return nil
}

func (c *pingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

type plainCommand struct{}

func (plainCommand) Name() string        { return "plain" }
func (plainCommand) Description() string { return "No slash definition" }
func (plainCommand) Group() string       { return "" }
func (plainCommand) Category() string    { return "" }
func (plainCommand) Run(any) error       { return nil }

type historyLog struct {
	entries map[string][]storage.CommandHistory
}

func (h *historyLog) AppendCommandToHistory(guildID string, e storage.CommandHistory) error {
	if h.entries == nil {
		h.entries = map[string][]storage.CommandHistory{}
	}
	h.entries[guildID] = append(h.entries[guildID], e)
	return nil
}

func interaction(guildID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: "ping"},
	}}
}

func TestAdapterRoutesContexts(t *testing.T) {
	reg := cmd.NewRegistry()
	ping := &pingCommand{}
	Register(reg, ping, WithGuildOnly())
	Register(reg, plainCommand{})

	c, ok := reg.Get("ping")
	require.True(t, ok)
	log := logrus.NewEntry(logrus.New())

	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: &SlashContext{Event: interaction("g1"), Log: log}}))
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: &ComponentContext{Event: interaction("g1"), Log: log}}))
	assert.Equal(t, 1, ping.slashRuns)
	assert.Equal(t, 1, ping.componentRuns)

	assert.True(t, HandlesComponents(c))
	plain, _ := reg.Get("plain")
	assert.False(t, HandlesComponents(plain))
	err := plain.Run(context.Background(), &cmd.Invocation{Data: &ComponentContext{Event: interaction("g1")}})
	assert.ErrorIs(t, err, ErrWrongContext)
}

func TestDefinitionAndMeta(t *testing.T) {
	reg := cmd.NewRegistry()
	Register(reg, &pingCommand{}, WithGuildOnly(), WithCommandLogger(nil))
	Register(reg, plainCommand{})

	ping, _ := reg.Get("ping")
	def := Definition(ping)
	require.NotNil(t, def)
	assert.Equal(t, discordgo.ChatApplicationCommand, def.Type)

	group, category := MetaOf(ping)
	assert.Equal(t, "core", group)
	assert.Equal(t, "🕯️ Information", category)

	plain, _ := reg.Get("plain")
	assert.Nil(t, Definition(plain))
}

func TestCommandLoggerStoresHistory(t *testing.T) {
	reg := cmd.NewRegistry()
	history := &historyLog{}
	Register(reg, &pingCommand{}, WithCommandLogger(history))
	c, _ := reg.Get("ping")

	inv := &cmd.Invocation{
		Args: []string{"query=abba"},
		Data: &SlashContext{Event: interaction("g1"), Log: logrus.NewEntry(logrus.New())},
	}
	require.NoError(t, c.Run(context.Background(), inv))

	require.Len(t, history.entries["g1"], 1)
	got := history.entries["g1"][0]
	assert.Equal(t, "ping", got.Command)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "query=abba", got.Param)
	assert.Equal(t, "chan", got.ChannelID)
}

func TestArgs(t *testing.T) {
	e := interaction("g1")
	e.Data = discordgo.ApplicationCommandInteractionData{
		Name: "play",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "abba"},
			{Name: "next", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		},
	}
	assert.Equal(t, []string{"next=true", "query=abba"}, Args(e))
	assert.Equal(t, "abba", Options(e)["query"].StringValue())

	button := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "playlist:next:0"},
	}}
	assert.Equal(t, []string{"playlist:next:0"}, Args(button))
}

func TestInteractionUser(t *testing.T) {
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "u2"}}}
	assert.Equal(t, "u2", InteractionUser(dm).ID)
	assert.Equal(t, "u1", InteractionUser(interaction("g1")).ID)
}
