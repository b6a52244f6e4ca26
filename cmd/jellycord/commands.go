package main

import (
	"io"
	"sort"

	"jellycord/internal/command"
	"jellycord/internal/command/core"
	"jellycord/internal/command/music"
	"jellycord/internal/config"
	"jellycord/pkg/cmd"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// registerCommands fills reg with every slash command the bot serves.
func registerCommands(reg *cmd.Registry, history core.HistoryReader, player *music.Player, mws ...cmd.Middleware) {
	core.Register(reg, history, mws...)
	music.Register(reg, player, mws...)
}

func commandsCmd() *cobra.Command {
	var markdown bool
	c := &cobra.Command{
		Use:   "commands",
		Short: "List the slash commands, optionally as Markdown for the README",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			reg := cmd.NewRegistry()
			registerCommands(reg, nil, &music.Player{})
			printCommands(c.OutOrStdout(), reg, markdown)
			return nil
		},
	}
	c.Flags().BoolVar(&markdown, "markdown", false, "render a Markdown table")
	return c
}

func printCommands(out io.Writer, reg *cmd.Registry, markdown bool) {
	all := reg.All()
	sort.SliceStable(all, func(i, j int) bool {
		_, ci := command.MetaOf(all[i])
		_, cj := command.MetaOf(all[j])
		return config.CategoryWeights[ci] < config.CategoryWeights[cj]
	})

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Category", "Command", "Description"})
	for _, c := range all {
		_, cat := command.MetaOf(c)
		t.AppendRow(table.Row{cat, "/" + c.Name(), c.Description()})
	}

	if markdown {
		t.RenderMarkdown()
		return
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	t.Render()
}
