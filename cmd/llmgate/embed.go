package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEmbedCmd(a *app) *cobra.Command {
	var (
		model string
		head  int
	)
	cmd := &cobra.Command{
		Use:   "embed <text>",
		Short: "Print the embedding of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.backend()
			if err != nil {
				return err
			}
			vec, err := clients.Embedder.Embed(cmd.Context(), strings.Join(args, " "), model)
			if err != nil {
				return err
			}
			fmt.Printf("dimensions: %d\n", len(vec))
			shown := vec
			if head >= 0 && head < len(vec) {
				shown = vec[:head]
			}
			for i, v := range shown {
				fmt.Printf("%4d  % .6f\n", i, v)
			}
			if len(shown) < len(vec) {
				fmt.Printf("  ... %d more\n", len(vec)-len(shown))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model (default from LLM_EMBEDDING_MODEL)")
	cmd.Flags().IntVar(&head, "head", 8, "number of components to print (negative prints all)")
	return cmd
}
