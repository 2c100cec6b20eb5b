// Package persona is the HTTP client of the persona backend, a separate
// conversational service that also rewrites image prompts.
package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/modelchat/internal/provider"
	"github.com/ashureev/modelchat/internal/resilience"
)

// Client implements provider.PersonaBackend.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

// New constructs a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("persona: base url must not be empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Name:      "persona",
			IsFailure: func(err error) bool { return err != nil && !provider.IsRateLimited(err) },
		})
	}
	return c, nil
}

type chatRequest struct {
	Message string             `json:"message"`
	History []provider.Message `json:"history"`
}

type chatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Chat implements provider.PersonaBackend.
func (c *Client) Chat(ctx context.Context, message string, history []provider.Message) (string, error) {
	if history == nil {
		history = []provider.Message{}
	}
	var reply string
	err := c.breaker.Execute(func() error {
		var err error
		reply, err = c.post(ctx, chatRequest{Message: message, History: history})
		return err
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("persona: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("persona: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", provider.Wrap(provider.ErrTransport, fmt.Errorf("persona: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", provider.Wrap(provider.ErrTransport, fmt.Errorf("persona: read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		se := &provider.StatusError{Backend: "persona", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		return "", provider.Wrap(provider.ClassifyStatus(resp.StatusCode), se)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: persona: %w", provider.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", fmt.Errorf("%w: persona: empty response", provider.ErrMalformedResponse)
	}
	return parsed.Response, nil
}
