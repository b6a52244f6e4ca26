package main

import (
	"io"

	"jellycord/internal/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the environment and print the configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			printConfig(c.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(out io.Writer, cfg *config.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Variable", "Value"})
	for _, kv := range cfg.Redacted() {
		t.AppendRow(table.Row{kv[0], kv[1]})
	}
	t.Render()
}
