package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/pkg/cost"
)

func newCostCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "cost <model> <input-tokens> <output-tokens>",
		Short: "Estimate the price of a request",
		Args: func(_ *cobra.Command, args []string) error {
			if list {
				return nil
			}
			if len(args) != 3 {
				return fmt.Errorf("accepts 3 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			table, err := a.priceTable()
			if err != nil {
				return err
			}

			if list {
				t := uitable.New()
				t.AddRow("MODEL", "INPUT USD/M", "OUTPUT USD/M")
				for _, m := range table.Models() {
					p := table.Price(m)
					t.AddRow(m, p.InputPerMillion, p.OutputPerMillion)
				}
				fb := table.Fallback()
				t.AddRow("(other)", fb.InputPerMillion, fb.OutputPerMillion)
				fmt.Println(t)
				return nil
			}

			in, err := strconv.Atoi(args[1])
			if err != nil || in < 0 {
				return fmt.Errorf("input tokens %q must be a non-negative integer", args[1])
			}
			out, err := strconv.Atoi(args[2])
			if err != nil || out < 0 {
				return fmt.Errorf("output tokens %q must be a non-negative integer", args[2])
			}
			if _, ok := table.Lookup(args[0]); !ok {
				fmt.Printf("note: no price for %s, using the fallback\n", args[0])
			}
			fmt.Printf("%.6f USD\n", table.Estimate(args[0], in, out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print the price table instead")
	return cmd
}

// priceTable returns the configured price table. Pricing needs no API key, so
// a configuration that fails to load falls back to the built-in prices.
func (a *app) priceTable() (*cost.Table, error) {
	cfg, err := a.config()
	if err != nil {
		slog.Warn("configuration unavailable, using built-in prices", "err", err)
		return cost.Default(), nil
	}
	return cfg.PriceTable()
}
