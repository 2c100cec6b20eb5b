// Package openai adapts the OpenAI API, and services exposing the same wire
// format (GitHub Models, Ollama), to the provider interfaces.
package openai

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashureev/modelchat/internal/provider"
)

// config holds optional client configuration.
type config struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
}

// Option is a functional option for the clients in this package.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

func newClient(name, apiKey string, opts []Option) (oai.Client, error) {
	if apiKey == "" {
		return oai.Client{}, fmt.Errorf("%s: apiKey must not be empty", name)
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	// The router owns recovery, so SDK retries are disabled.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.userAgent != "" {
		reqOpts = append(reqOpts, option.WithHeader("User-Agent", cfg.userAgent))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return oai.NewClient(reqOpts...), nil
}

// classify maps an SDK error onto the provider failure classes.
func classify(name string, err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return provider.Wrap(provider.ClassifyStatus(apiErr.StatusCode), fmt.Errorf("%s: %w", name, err))
	}
	return provider.Wrap(provider.ErrTransport, fmt.Errorf("%s: %w", name, err))
}
