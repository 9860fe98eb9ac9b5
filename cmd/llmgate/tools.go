package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/internal/tools/mcptools"
)

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect or serve the built-in functions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the functions offered by chat --tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closeTools, err := a.toolset(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeTools()
			for _, t := range d.Tools() {
				fmt.Printf("%-20s %s\n", t.Definition.Name, t.Definition.Description)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the built-in functions as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closeTools, err := a.toolset(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeTools()
			return mcptools.Serve(cmd.Context(), d, mcptools.ServerConfig{
				Name:    "llmgate",
				Version: version,
				Logger:  slog.Default(),
			})
		},
	})
	return cmd
}
