package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/pkg/reasoning"
)

func newThinkCmd(a *app) *cobra.Command {
	var (
		model     string
		showSteps bool
	)
	cmd := &cobra.Command{
		Use:   "think <question>",
		Short: "Ask for step-by-step reasoning and print the parsed trace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.Models.Tier("advanced")
			}
			c, err := a.completer(model, nil)
			if err != nil {
				return err
			}

			tr, err := reasoning.Solve(cmd.Context(), c, strings.Join(args, " "), reasoning.WithModel(model))
			if err != nil {
				return err
			}
			if showSteps {
				for _, s := range tr.Steps {
					fmt.Printf("%d. %s\n", s.Index, s.Text)
				}
				if len(tr.Steps) > 0 {
					fmt.Println()
				}
			}
			fmt.Println(tr.Answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model identifier (default: the advanced tier)")
	cmd.Flags().BoolVar(&showSteps, "steps", true, "print the numbered reasoning steps")
	return cmd
}
