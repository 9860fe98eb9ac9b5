// Package openai provides an llm.Completer and llm.Embedder backed by the
// official OpenAI Go SDK. It speaks the same dialect as package gateway and
// can point at any compatible base URL; it exists for deployments that
// prefer the SDK's transport, retries and error types.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// DefaultEmbeddingModel is used when Embed is called without a model.
const DefaultEmbeddingModel = "text-embedding-ada-002"

// Provider implements llm.Completer and llm.Embedder using the OpenAI SDK.
type Provider struct {
	client         oai.Client
	model          string
	embeddingModel string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL        string
	embeddingModel string
	timeout        time.Duration
	httpClient     *http.Client
	headers        map[string]string
	maxRetries     int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithEmbeddingModel sets the default embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *config) {
		c.embeddingModel = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *config) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// WithMaxRetries sets the SDK's own retry count. The default of zero keeps
// retry policy with the caller, matching package gateway.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a Provider. model is the default chat model and may be
// empty when every request names its own.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{embeddingModel: DefaultEmbeddingModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	hc := cfg.httpClient
	if cfg.timeout > 0 {
		if hc == nil {
			hc = &http.Client{}
		}
		clone := *hc
		clone.Timeout = cfg.timeout
		hc = &clone
	}
	if hc != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(hc))
	}
	for k, v := range cfg.headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}

	return &Provider{
		client:         oai.NewClient(reqOpts...),
		model:          model,
		embeddingModel: cfg.embeddingModel,
	}, nil
}

// Complete implements llm.Completer.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	if req.Model == "" {
		return nil, &llm.RequestError{Field: "model", Reason: "no model given and no default configured"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params, opts := buildParams(req)
	resp, err := p.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, classify("complete", err)
	}

	result := &llm.CompletionResult{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return result, nil
	}
	choice := resp.Choices[0]
	result.Text = choice.Message.Content
	result.FinishReason = string(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		call := llm.FunctionCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
			Arguments:    map[string]any{},
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil && args != nil {
			call.Arguments = args
		}
		result.FunctionCalls = append(result.FunctionCalls, call)
	}
	return result, nil
}

// Embed implements llm.Embedder. Input is normalised the same way as the
// REST gateway, and an empty response yields an empty vector.
func (p *Provider) Embed(ctx context.Context, text, model string) ([]float64, error) {
	if model == "" {
		model = p.embeddingModel
	}
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{llm.EmbeddingInput(text)},
		},
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	if len(resp.Data) == 0 {
		return []float64{}, nil
	}
	return resp.Data[0].Embedding, nil
}

// buildParams converts req into SDK parameters. Stop sequences go through a
// raw JSON override so the request shape matches the REST gateway.
func buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, []option.RequestOption) {
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, toMessage(m))
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*req.MaxTokens))
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = param.NewOpt(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = param.NewOpt(*req.PresencePenalty)
	}
	for _, f := range req.Functions {
		def := shared.FunctionDefinitionParam{
			Name:       f.Name,
			Parameters: shared.FunctionParameters(f.Parameters),
		}
		if f.Description != "" {
			def.Description = param.NewOpt(f.Description)
		}
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{Function: def})
	}

	var opts []option.RequestOption
	if len(req.Stop) > 0 {
		opts = append(opts, option.WithJSONSet("stop", req.Stop))
	}
	return params, opts
}

func toMessage(m llm.Message) oai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Text())
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Text())
	}
	if !m.Multimodal() {
		return oai.UserMessage(m.Content)
	}
	parts := make([]oai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
	for _, part := range m.Parts {
		switch part.Kind {
		case llm.PartText:
			parts = append(parts, oai.TextContentPart(part.Text))
		case llm.PartImage:
			parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
				URL:    part.ImageURL,
				Detail: string(part.Detail),
			}))
		}
	}
	return oai.UserMessage(parts)
}

// classify maps SDK errors onto the llm error taxonomy.
func classify(op string, err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{Status: apiErr.StatusCode, Body: apiErr.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai: %s: %w", op, err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &llm.ProtocolError{Reason: "decode " + op + " response", Err: err}
	}
	return &llm.TransportError{Op: op, Err: err}
}

var (
	_ llm.Completer = (*Provider)(nil)
	_ llm.Embedder  = (*Provider)(nil)
)
