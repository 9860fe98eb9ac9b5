// Command llmgate is the command-line front end of the gateway: chat,
// reasoning, model comparison, embeddings, cost estimates, setup checks and
// an MCP tool server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintf(os.Stderr, "llmgate: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "llmgate",
		Short:         "OpenAI-compatible LLM gateway toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.start(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LLM_LOG_LEVEL)")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file (default from LLM_CONFIG_FILE)")

	root.AddCommand(
		newChatCmd(a),
		newThinkCmd(a),
		newExtractCmd(a),
		newCompareCmd(a),
		newEmbedCmd(a),
		newCostCmd(a),
		newDoctorCmd(a),
		newToolsCmd(a),
	)
	return root
}

// newLogger returns a text logger on stderr at level.
func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.Level()}))
}
