package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/internal/compare"
	"github.com/MrWong99/llmgate/pkg/cost"
	"github.com/MrWong99/llmgate/pkg/llm"
)

type compareFlags struct {
	models         []string
	suite          string
	sequential     bool
	maxConcurrency int
	breaker        int
	temperature    float64
	maxTokens      int
	showResponses  bool
}

func newCompareCmd(a *app) *cobra.Command {
	f := &compareFlags{}
	cmd := &cobra.Command{
		Use:   "compare [prompt...]",
		Short: "Send the same prompts to several models and rank them by cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			models, prompts := f.models, args
			if f.suite != "" {
				s, ok := cfg.File.Suites[f.suite]
				if !ok {
					return fmt.Errorf("unknown suite %q", f.suite)
				}
				if len(models) == 0 {
					models = s.Models
				}
				if len(prompts) == 0 {
					prompts = s.Prompts
				}
			}
			if len(models) == 0 {
				return errors.New("no models to compare; use --models or --suite")
			}
			if len(prompts) == 0 {
				return errors.New("no prompts to compare; pass them as arguments or use --suite")
			}

			// Each result must come from the model it is labelled with, so
			// the fallback chain is not applied here.
			c, err := a.instrumented()
			if err != nil {
				return err
			}
			table, err := cfg.PriceTable()
			if err != nil {
				return err
			}

			o := compare.Options{
				Sequential:       f.sequential,
				MaxConcurrency:   f.maxConcurrency,
				BreakerThreshold: f.breaker,
			}
			if f.temperature >= 0 {
				o.Temperature = llm.Float(f.temperature)
			}
			if f.maxTokens > 0 {
				o.MaxTokens = llm.Int(f.maxTokens)
			}

			h := compare.New(c, compare.WithMetrics(a.metrics), compare.WithLogger(slog.Default()))
			for i, br := range h.CompareBatch(cmd.Context(), prompts, models, o) {
				if i > 0 {
					fmt.Println()
				}
				printBatch(br, table, f.showResponses)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.models, "models", nil, "comma-separated model identifiers")
	fl.StringVar(&f.suite, "suite", "", "named suite from the configuration file")
	fl.BoolVar(&f.sequential, "sequential", false, "call models one after another")
	fl.IntVar(&f.maxConcurrency, "max-concurrency", 0, "cap on concurrent calls (0 for no cap)")
	fl.IntVar(&f.breaker, "breaker", 3, "skip a model after this many consecutive failures (0 disables)")
	fl.Float64Var(&f.temperature, "temperature", -1, "sampling temperature (negative leaves it to the upstream)")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "maximum reply tokens (0 leaves it to the upstream)")
	fl.BoolVar(&f.showResponses, "responses", false, "print every model's response")
	return cmd
}

func printBatch(br compare.BatchResult, table *cost.Table, showResponses bool) {
	fmt.Printf("Prompt: %s\n\n", br.Prompt)

	t := uitable.New()
	t.MaxColWidth = 60
	t.AddRow("MODEL", "COST (USD)", "TOKENS", "USD/TOKEN", "TIME", "TIME/TOKEN")
	for _, r := range compare.Rank(br.Results, compare.EstimateTokens(br.Prompt), table) {
		t.AddRow(r.Model, fmt.Sprintf("%.6f", r.Cost), r.OutputTokens,
			fmt.Sprintf("%.8f", r.CostPerToken), r.Elapsed.Round(time.Millisecond), r.TimePerToken.Round(time.Microsecond))
	}
	fmt.Println(t)

	for _, r := range br.Results {
		if !r.OK() {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", r.Model, r.Err)
		}
	}
	if !showResponses {
		return
	}
	for _, r := range br.Results {
		if r.OK() {
			fmt.Printf("\n── %s ──\n%s\n", r.Model, strings.TrimSpace(r.Response))
		}
	}
}
