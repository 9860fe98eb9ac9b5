package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/internal/health"
	"github.com/MrWong99/llmgate/internal/tools/mcptools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// errChecksFailed is returned by doctor after it has printed its report.
var errChecksFailed = errors.New("one or more checks failed")

func newDoctorCmd(a *app) *cobra.Command {
	var (
		offline bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and upstream connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reports := health.Run(cmd.Context(), timeout, a.doctorChecks(offline)...)

			t := uitable.New()
			t.MaxColWidth = 80
			t.Wrap = true
			t.AddRow("CHECK", "STATUS", "TIME", "DETAIL")
			for _, r := range reports {
				t.AddRow(r.Name, r.Status, r.Elapsed.Round(time.Millisecond), r.Detail)
			}
			fmt.Println(t)

			if health.Failed(reports) {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip checks that call the upstream")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-check timeout")
	return cmd
}

// doctorChecks returns the checks in the order they are reported. Checks
// that depend on a failed earlier step skip instead of failing again.
func (a *app) doctorChecks(offline bool) []health.Checker {
	online := func(fn func(ctx context.Context) error) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			if offline {
				return health.Skip("--offline")
			}
			if _, err := a.backend(); err != nil {
				return health.Skip("backend unavailable")
			}
			return fn(ctx)
		}
	}

	return []health.Checker{
		{Name: "config", Check: func(context.Context) error {
			_, err := a.config()
			return err
		}},
		{Name: "backend", Check: func(context.Context) error {
			if _, err := a.config(); err != nil {
				return health.Skip("configuration invalid")
			}
			_, err := a.backend()
			return err
		}},
		{Name: "models", Check: func(context.Context) error {
			cfg, err := a.config()
			if err != nil {
				return health.Skip("configuration invalid")
			}
			table, err := cfg.PriceTable()
			if err != nil {
				return err
			}
			var unpriced []string
			for _, m := range uniqueModels(cfg.Models.Default, cfg.Models.Fast, cfg.Models.Advanced, cfg.Models.Vision) {
				if _, ok := table.Lookup(m); !ok {
					unpriced = append(unpriced, m)
				}
			}
			if len(unpriced) > 0 {
				return health.Skip("no price for %s; estimates use the fallback", strings.Join(unpriced, ", "))
			}
			return nil
		}},
		{Name: "completion", Check: online(func(ctx context.Context) error {
			clients, _ := a.backend()
			res, err := clients.Completer.Complete(ctx, llm.CompletionRequest{
				Messages:  []llm.Message{llm.UserMessage("Reply with the single word: pong")},
				MaxTokens: llm.Int(5),
			})
			if err != nil {
				return err
			}
			if strings.TrimSpace(res.Text) == "" {
				return errors.New("empty reply")
			}
			return nil
		})},
		{Name: "embedding", Check: online(func(ctx context.Context) error {
			clients, _ := a.backend()
			vec, err := clients.Embedder.Embed(ctx, "ping", "")
			if err != nil {
				return err
			}
			if len(vec) == 0 {
				return errors.New("empty embedding")
			}
			return nil
		})},
		{Name: "mcp servers", Check: func(ctx context.Context) error {
			cfg, err := a.config()
			if err != nil {
				return health.Skip("configuration invalid")
			}
			if len(cfg.File.MCPServers) == 0 {
				return health.Skip("none configured")
			}
			if offline {
				return health.Skip("--offline")
			}
			var errs []error
			for _, rc := range cfg.File.MCPServers {
				r, err := mcptools.Connect(ctx, rc)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if _, err := r.Tools(ctx); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", rc.Name, err))
				}
				_ = r.Close()
			}
			return errors.Join(errs...)
		}},
	}
}

func uniqueModels(models ...string) []string {
	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
