package main

import (
	"context"
	"net/http"

	"github.com/MrWong99/llmgate/internal/config"
	"github.com/MrWong99/llmgate/pkg/gateway"
	"github.com/MrWong99/llmgate/pkg/llm"
	oaibackend "github.com/MrWong99/llmgate/pkg/llm/openai"
	"github.com/MrWong99/llmgate/pkg/sse"
)

// embeddingCacheSize is the number of embeddings the REST gateway keeps.
const embeddingCacheSize = 256

// newRegistry returns a registry with the built-in backends.
func newRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.Register(config.BackendREST, func(cfg *config.Config, hc *http.Client) (*config.Clients, error) {
		opts := []gateway.Option{
			gateway.WithBaseURL(cfg.BaseURL),
			gateway.WithDefaultModel(cfg.Models.Default),
			gateway.WithHTTPClient(hc),
			gateway.WithTimeout(cfg.Timeout),
			gateway.WithMinInterval(cfg.MinInterval),
			gateway.WithAppIdentity(cfg.AppURL, cfg.AppTitle),
			gateway.WithEmbeddingCache(embeddingCacheSize),
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, gateway.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		g, err := gateway.New(cfg.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return &config.Clients{
			Completer: g,
			Embedder:  g,
			Streamer:  &restStreamer{g: g, dec: sse.NewDecoder()},
		}, nil
	})

	// The SDK backend has no streaming support.
	reg.Register(config.BackendSDK, func(cfg *config.Config, hc *http.Client) (*config.Clients, error) {
		opts := []oaibackend.Option{
			oaibackend.WithBaseURL(cfg.BaseURL),
			oaibackend.WithHTTPClient(hc),
			oaibackend.WithTimeout(cfg.Timeout),
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, oaibackend.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		if cfg.AppURL != "" {
			opts = append(opts, oaibackend.WithHeader("HTTP-Referer", cfg.AppURL))
		}
		if cfg.AppTitle != "" {
			opts = append(opts, oaibackend.WithHeader("X-Title", cfg.AppTitle))
		}
		p, err := oaibackend.New(cfg.APIKey, cfg.Models.Default, opts...)
		if err != nil {
			return nil, err
		}
		return &config.Clients{Completer: p, Embedder: p}, nil
	})

	return reg
}

// restStreamer adapts the gateway's decoder-taking Stream to
// [config.Streamer].
type restStreamer struct {
	g   *gateway.Gateway
	dec *sse.Decoder
}

func (s *restStreamer) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	return s.g.Stream(ctx, req, s.dec)
}
