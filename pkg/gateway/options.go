package gateway

import (
	"net/http"
	"time"
)

// DefaultBaseURL is the OpenRouter endpoint, which speaks the
// OpenAI chat-completions dialect for many upstream models.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultEmbeddingModel is used by Embed when neither the call nor the
// gateway names a model.
const DefaultEmbeddingModel = "text-embedding-ada-002"

// DefaultMinInterval is the minimum spacing between two non-streaming
// requests issued through one Gateway.
const DefaultMinInterval = 100 * time.Millisecond

// config holds optional configuration for the gateway.
type config struct {
	baseURL        string
	defaultModel   string
	embeddingModel string
	httpClient     *http.Client
	timeout        time.Duration
	minInterval    time.Duration
	appURL         string
	appTitle       string
	cacheSize      int
}

// Option is a functional option for [Gateway].
type Option func(*config)

// WithBaseURL overrides the API base URL. A trailing slash is ignored.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) Option {
	return func(c *config) {
		c.defaultModel = model
	}
}

// WithEmbeddingModel sets the model used by Embed when the call passes none.
func WithEmbeddingModel(model string) Option {
	return func(c *config) {
		c.embeddingModel = model
	}
}

// WithHTTPClient replaces the HTTP client. Use it to install an instrumented
// transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithTimeout sets an overall per-request timeout on the HTTP client.
// Zero (the default) means no timeout beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMinInterval sets the minimum spacing between non-streaming requests.
// Zero disables pacing.
func WithMinInterval(d time.Duration) Option {
	return func(c *config) {
		c.minInterval = d
	}
}

// WithAppIdentity sets the two static identification headers
// (HTTP-Referer and X-Title) sent with every request. Empty values are
// omitted.
func WithAppIdentity(url, title string) Option {
	return func(c *config) {
		c.appURL = url
		c.appTitle = title
	}
}

// WithEmbeddingCache enables an LRU cache of size n for Embed results.
func WithEmbeddingCache(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}
