package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

type chatFlags struct {
	model       string
	tier        string
	system      string
	images      []string
	stream      bool
	useTools    bool
	rounds      int
	temperature float64
	maxTokens   int
	fallbacks   []string
}

func newChatCmd(a *app) *cobra.Command {
	f := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send one prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a, f, strings.Join(args, " "))
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.model, "model", "m", "", "model identifier (overrides --tier)")
	fl.StringVar(&f.tier, "tier", "default", "model tier: default, fast, advanced, vision")
	fl.StringVarP(&f.system, "system", "s", "", "system prompt")
	fl.StringArrayVar(&f.images, "image", nil, "image URL to attach; may be repeated (selects the vision tier)")
	fl.BoolVar(&f.stream, "stream", false, "print tokens as they arrive")
	fl.BoolVar(&f.useTools, "tools", false, "offer the built-in and configured MCP functions")
	fl.IntVar(&f.rounds, "rounds", tools.DefaultMaxRounds, "maximum function-calling rounds")
	fl.Float64Var(&f.temperature, "temperature", -1, "sampling temperature (negative leaves it to the upstream)")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "maximum reply tokens (0 leaves it to the upstream)")
	fl.StringSliceVar(&f.fallbacks, "fallback-models", nil, "models tried in order when the primary fails")
	return cmd
}

func runChat(ctx context.Context, a *app, f *chatFlags, prompt string) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	tier := f.tier
	if len(f.images) > 0 && tier == "default" {
		tier = "vision"
	}
	model := f.model
	if model == "" {
		model = cfg.Models.Tier(tier)
	}

	req := llm.CompletionRequest{Model: model}
	if f.system != "" {
		req.Messages = append(req.Messages, llm.SystemMessage(f.system))
	}
	req.Messages = append(req.Messages, userMessage(prompt, f.images))
	if f.temperature >= 0 {
		req.Temperature = llm.Float(f.temperature)
	}
	if f.maxTokens > 0 {
		req.MaxTokens = llm.Int(f.maxTokens)
	}

	switch {
	case f.stream && f.useTools:
		return errors.New("--stream and --tools cannot be combined")
	case f.stream:
		return streamChat(ctx, a, req)
	}

	c, err := a.completer(model, f.fallbacks)
	if err != nil {
		return err
	}

	if !f.useTools {
		res, err := c.Complete(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(res.Text)
		return nil
	}

	d, closeTools, err := a.toolset(ctx, true)
	if err != nil {
		return err
	}
	defer closeTools()

	conv, err := d.Converse(ctx, c, req, f.rounds)
	if err != nil {
		return err
	}
	for _, r := range conv.Calls {
		slog.Debug("function call", "name", r.Name, "ok", r.OK(), "duration", r.Duration)
	}
	fmt.Println(conv.Final.Text)
	return nil
}

func userMessage(prompt string, images []string) llm.Message {
	if len(images) == 0 {
		return llm.UserMessage(prompt)
	}
	parts := []llm.ContentPart{llm.TextPart(prompt)}
	for _, u := range images {
		parts = append(parts, llm.ImagePart(u, llm.DetailAuto))
	}
	return llm.Message{Role: llm.RoleUser, Parts: parts}
}

func streamChat(ctx context.Context, a *app, req llm.CompletionRequest) error {
	clients, err := a.backend()
	if err != nil {
		return err
	}
	if clients.Streamer == nil {
		cfg, _ := a.config()
		return fmt.Errorf("backend %q does not support streaming", cfg.Backend)
	}

	events, err := clients.Streamer.Stream(ctx, req)
	if err != nil {
		return err
	}
	for ev := range events {
		switch ev.Kind {
		case llm.EventToken:
			fmt.Fprint(os.Stdout, ev.Text)
		case llm.EventDone:
			fmt.Fprintln(os.Stdout)
			return nil
		case llm.EventError:
			fmt.Fprintln(os.Stdout)
			return ev.Err
		}
	}
	return llm.ErrNoResult
}
