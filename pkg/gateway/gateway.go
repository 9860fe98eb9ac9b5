// Package gateway is a thin client for an OpenAI-compatible HTTP API.
//
// A [Gateway] sends blocking and streaming chat completions to
// {baseURL}/chat/completions and embedding requests to {baseURL}/embeddings.
// It paces non-streaming requests through a rate limiter, classifies every
// failure into the error taxonomy of package llm, and never retries on its
// own: retry policy belongs to callers such as structured generation.
//
// All methods are safe for concurrent use.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// StreamDecoder turns a streaming response body into events. The decoder
// takes ownership of body and must close it. See package sse.
type StreamDecoder interface {
	Decode(ctx context.Context, body io.ReadCloser) <-chan llm.StreamEvent
}

// Gateway is a REST client for the chat-completions dialect.
type Gateway struct {
	apiKey         string
	baseURL        string
	defaultModel   string
	embeddingModel string
	appURL         string
	appTitle       string

	http    *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[string, []float64]
}

// New constructs a Gateway authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Gateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway: apiKey must not be empty")
	}

	cfg := &config{
		baseURL:        DefaultBaseURL,
		embeddingModel: DefaultEmbeddingModel,
		minInterval:    DefaultMinInterval,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.baseURL == "" {
		return nil, fmt.Errorf("gateway: baseURL must not be empty")
	}
	if cfg.minInterval < 0 {
		return nil, fmt.Errorf("gateway: min interval must not be negative")
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.timeout > 0 {
		clone := *hc
		clone.Timeout = cfg.timeout
		hc = &clone
	}

	limit := rate.Inf
	if cfg.minInterval > 0 {
		limit = rate.Every(cfg.minInterval)
	}

	g := &Gateway{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(cfg.baseURL, "/"),
		defaultModel:   cfg.defaultModel,
		embeddingModel: cfg.embeddingModel,
		appURL:         cfg.appURL,
		appTitle:       cfg.appTitle,
		http:           hc,
		limiter:        rate.NewLimiter(limit, 1),
	}
	if cfg.cacheSize > 0 {
		cache, err := lru.New[string, []float64](cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("gateway: embedding cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// DefaultModel returns the model used for requests that name none.
func (g *Gateway) DefaultModel() string { return g.defaultModel }

// Complete sends req and waits for the full reply.
func (g *Gateway) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	req, err := g.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway: complete: %w", err)
	}

	var resp chatResponse
	if err := g.postJSON(ctx, "complete", "/chat/completions", toWire(req, false), &resp); err != nil {
		return nil, err
	}
	return fromWire(&resp), nil
}

// Stream sends req with streaming enabled and hands the response body to
// dec. Streaming requests are not paced. Errors that prevent the stream from
// starting (bad request, transport failure, non-2xx status) are returned
// directly; later failures arrive as an error event.
func (g *Gateway) Stream(ctx context.Context, req llm.CompletionRequest, dec StreamDecoder) (<-chan llm.StreamEvent, error) {
	if dec == nil {
		return nil, &llm.RequestError{Field: "decoder", Reason: "must not be nil"}
	}
	req, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := g.newRequest(ctx, "/chat/completions", toWire(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Op: "stream", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &llm.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return dec.Decode(ctx, resp.Body), nil
}

// Embed returns the embedding of text. Newlines are collapsed to spaces and
// blank input is replaced by a fixed placeholder so the upstream always
// receives a non-empty string. A response without data yields an empty
// vector rather than an error.
func (g *Gateway) Embed(ctx context.Context, text, model string) ([]float64, error) {
	text = llm.EmbeddingInput(text)
	if model == "" {
		model = g.embeddingModel
	}
	key := model + "\x00" + text
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			return v, nil
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway: embed: %w", err)
	}
	var resp embeddingResponse
	if err := g.postJSON(ctx, "embed", "/embeddings", embeddingRequest{Model: model, Input: []string{text}}, &resp); err != nil {
		return nil, err
	}
	vec := []float64{}
	if len(resp.Data) > 0 && resp.Data[0].Embedding != nil {
		vec = resp.Data[0].Embedding
	}
	if g.cache != nil && len(vec) > 0 {
		g.cache.Add(key, vec)
	}
	return vec, nil
}

// prepare resolves the default model and validates req.
func (g *Gateway) prepare(req llm.CompletionRequest) (llm.CompletionRequest, error) {
	if req.Model == "" {
		req.Model = g.defaultModel
	}
	if req.Model == "" {
		return req, &llm.RequestError{Field: "model", Reason: "no model given and no default configured"}
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func (g *Gateway) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if g.appURL != "" {
		req.Header.Set("HTTP-Referer", g.appURL)
	}
	if g.appTitle != "" {
		req.Header.Set("X-Title", g.appTitle)
	}
	return req, nil
}

// postJSON performs one request/response round trip and decodes the body
// into out, classifying failures.
func (g *Gateway) postJSON(ctx context.Context, op, path string, in, out any) error {
	req, err := g.newRequest(ctx, path, in)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return &llm.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &llm.TransportError{Op: op, Err: fmt.Errorf("read body after %s: %w", time.Since(start).Round(time.Millisecond), err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &llm.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &llm.ProtocolError{Reason: "decode " + op + " response", Body: string(body), Err: err}
	}
	return nil
}

var (
	_ llm.Completer = (*Gateway)(nil)
	_ llm.Embedder  = (*Gateway)(nil)
)
