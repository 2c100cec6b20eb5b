// Package cloudflare synthesizes images with Cloudflare Workers AI.
package cloudflare

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
)

// DefaultBaseURL is the Cloudflare API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// maxImageBytes caps how much of a response body is read.
const maxImageBytes = 32 << 20

// Synthesizer implements provider.ImageSynthesizer.
type Synthesizer struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(s *Synthesizer) { s.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.http = c }
}

// New constructs a Synthesizer for the given account.
func New(accountID, token string, opts ...Option) (*Synthesizer, error) {
	if accountID == "" || token == "" {
		return nil, errors.New("cloudflare: account id and api token are required")
	}
	s := &Synthesizer{
		baseURL:   DefaultBaseURL,
		accountID: accountID,
		token:     token,
		http:      &http.Client{Timeout: 90 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type runRequest struct {
	Prompt string `json:"prompt"`
}

type errorEnvelope struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Synthesize implements provider.ImageSynthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, req provider.ImageRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("cloudflare: prompt must not be empty")
	}
	body, err := json.Marshal(runRequest{Prompt: req.Prompt})
	if err != nil {
		return nil, fmt.Errorf("cloudflare: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/@cf/stabilityai/%s", s.baseURL, s.accountID, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, provider.Wrap(provider.ErrTransport, fmt.Errorf("cloudflare: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, provider.Wrap(provider.ErrTransport, fmt.Errorf("cloudflare: read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		se := &provider.StatusError{Backend: "cloudflare", StatusCode: resp.StatusCode, Message: envelopeMessage(data)}
		return nil, provider.Wrap(provider.ClassifyStatus(resp.StatusCode), se)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		// A 200 JSON body carries no image.
		return nil, fmt.Errorf("%w: cloudflare: %s", provider.ErrEmptyResult, envelopeMessage(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: cloudflare: empty body", provider.ErrEmptyResult)
	}
	return data, nil
}

func envelopeMessage(data []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return strings.Join(msgs, "; ")
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
