package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/llmgate/pkg/structured"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		model   string
		fields  []string
		retries int
	)
	cmd := &cobra.Command{
		Use:   "extract <prompt>",
		Short: "Ask for a JSON object with the given fields and validate the reply",
		Example: `  llmgate extract --field name=string --field age=integer \
    "Invent a character for a cozy village game"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := parseFields(fields)
			if err != nil {
				return err
			}
			c, err := a.completer(model, nil)
			if err != nil {
				return err
			}
			opts := []structured.Option{structured.WithRetries(retries)}
			if model != "" {
				opts = append(opts, structured.WithModel(model))
			}

			v, err := structured.Generate[map[string]any](cmd.Context(), c, strings.Join(args, " "), schema, opts...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model identifier")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "required field as name=type (string, number, integer, boolean); may be repeated")
	cmd.Flags().IntVar(&retries, "retries", structured.DefaultRetries, "attempts before giving up")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

// parseFields builds an object schema in which every listed field is
// required.
func parseFields(specs []string) (*structured.Schema, error) {
	props := make(map[string]*structured.Schema, len(specs))
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		name, kind, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--field %q: want name=type", s)
		}
		var fs *structured.Schema
		switch strings.TrimSpace(kind) {
		case "string":
			fs = structured.String()
		case "number":
			fs = structured.Number()
		case "integer":
			fs = structured.Integer()
		case "boolean":
			fs = structured.Boolean()
		default:
			return nil, fmt.Errorf("--field %q: unknown type %q", s, kind)
		}
		if _, dup := props[name]; dup {
			return nil, fmt.Errorf("--field %q: duplicate field", name)
		}
		props[name] = fs
		names = append(names, name)
	}
	return structured.Object(props).Require(names...), nil
}
